package chapters

import (
	"fmt"
	"regexp"
	"slices"
)

// seasonRe matches "S2 - Episode 104", "Season 3 25.5", "S1 10".
var seasonRe = regexp.MustCompile(`\bS(?:eason\s*)?(\d+)\b\D*?(\d+(?:\.\d+)?)`)

// SeasonEpisode is a season-qualified episode reference.
type SeasonEpisode struct {
	Season  int
	Episode float64
}

// Numbering is the number assignment for one chapter title.
type Numbering struct {
	ChapterNumber float64
	VolumeNumber  *int
	VolumeName    *string
}

// ExtractSeasonAndEpisode detects a season marker followed by an episode number.
func ExtractSeasonAndEpisode(title string) (SeasonEpisode, bool) {
	m := seasonRe.FindStringSubmatch(title)
	if m == nil {
		return SeasonEpisode{}, false
	}
	season, ok := parseNumber(m[1])
	if !ok {
		return SeasonEpisode{}, false
	}
	episode, ok := parseNumber(m[2])
	if !ok {
		return SeasonEpisode{}, false
	}
	return SeasonEpisode{Season: int(season), Episode: episode}, true
}

// AssignSeasonedChapterNumbers numbers a newest-first list of chapter titles.
//
// Seasonal episodes are renumbered cumulatively: each season starts after the
// highest episode of every earlier season, so "S1 - Episode 96" and
// "S2 - Episode 96" become 96 and 192. Other titles use ExtractChapterNumber,
// and titles without any number fall back to len(titles)-index.
func AssignSeasonedChapterNumbers(titles []string) []Numbering {
	parsed := make([]*SeasonEpisode, len(titles))
	maxBySeason := make(map[int]float64)

	for i, title := range titles {
		se, ok := ExtractSeasonAndEpisode(title)
		if !ok {
			continue
		}
		parsed[i] = &se
		if cur, seen := maxBySeason[se.Season]; !seen || se.Episode > cur {
			maxBySeason[se.Season] = se.Episode
		}
	}

	seasons := make([]int, 0, len(maxBySeason))
	for s := range maxBySeason {
		seasons = append(seasons, s)
	}
	slices.Sort(seasons)

	offsets := make(map[int]float64, len(seasons))
	var cumulative float64
	for _, s := range seasons {
		offsets[s] = cumulative
		cumulative += maxBySeason[s]
	}

	out := make([]Numbering, len(titles))
	for i, title := range titles {
		if se := parsed[i]; se != nil {
			season := se.Season
			name := fmt.Sprintf("Season %d", season)
			out[i] = Numbering{
				ChapterNumber: offsets[season] + se.Episode,
				VolumeNumber:  &season,
				VolumeName:    &name,
			}
			continue
		}
		if n, ok := ExtractChapterNumber(title); ok {
			out[i] = Numbering{ChapterNumber: n}
			continue
		}
		out[i] = Numbering{ChapterNumber: float64(len(titles) - i)}
	}
	return out
}
