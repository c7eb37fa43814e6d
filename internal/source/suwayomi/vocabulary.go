package suwayomi

import (
	"regexp"
	"strings"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
)

type status = source.Pair[domain.SerieStatus]

var languages = map[string]domain.Language{
	"en":      domain.LanguageEn,
	"ja":      domain.LanguageJp,
	"ja-ro":   domain.LanguageJpRo,
	"fr":      domain.LanguageFr,
	"ko":      domain.LanguageKo,
	"ko-ro":   domain.LanguageKoRo,
	"zh-hk":   domain.LanguageZhHk,
	"zh":      domain.LanguageZh,
	"zh-hans": domain.LanguageZh,
	"zh-hant": domain.LanguageZhHk,
}

// catalogLanguage maps an extension language code. Codes without a
// counterpart (including "all") are treated as English.
func catalogLanguage(code string) domain.Language {
	if l, ok := languages[strings.ToLower(code)]; ok {
		return l
	}
	return domain.LanguageEn
}

// Completed is declared last so it translates back to COMPLETED.
var statuses = source.NewTable("status",
	status{Canonical: domain.StatusUnknown, Native: "UNKNOWN"},
	status{Canonical: domain.StatusOngoing, Native: "ONGOING"},
	status{Canonical: domain.StatusPublished, Native: "LICENSED"},
	status{Canonical: domain.StatusCompleted, Native: "PUBLISHING_FINISHED"},
	status{Canonical: domain.StatusCanceled, Native: "CANCELLED"},
	status{Canonical: domain.StatusHiatus, Native: "ON_HIATUS"},
	status{Canonical: domain.StatusCompleted, Native: "COMPLETED"},
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// genres is keyed by the lowercased genre with every non-alphanumeric
// character removed, so "Slice of Life" and "slice-of-life" agree.
var genres = map[string]domain.Genre{
	"action":        domain.GenreAction,
	"adventure":     domain.GenreAdventure,
	"comedy":        domain.GenreComedy,
	"drama":         domain.GenreDrama,
	"fantasy":       domain.GenreFantasy,
	"horror":        domain.GenreHorror,
	"mystery":       domain.GenreMystery,
	"psychological": domain.GenrePsychological,
	"romance":       domain.GenreRomance,
	"scifi":         domain.GenreSciFi,
	"sliceoflife":   domain.GenreSliceOfLife,
	"sports":        domain.GenreSports,
	"supernatural":  domain.GenreSupernatural,
	"thriller":      domain.GenreThriller,
	"shounen":       domain.GenreShounen,
	"shoujo":        domain.GenreShoujo,
	"seinen":        domain.GenreSeinen,
	"josei":         domain.GenreJosei,
	"harem":         domain.GenreHarem,
	"reverseharem":  domain.GenreReverseHarem,
	"isekai":        domain.GenreIsekai,
	"mecha":         domain.GenreMecha,
	"martialarts":   domain.GenreMartialArts,
	"schoollife":    domain.GenreSchoolLife,
	"ecchi":         domain.GenreEcchi,
	"mature":        domain.GenreMature,
	"adult":         domain.GenreAdult,
	"gore":          domain.GenreGore,
	"boyslove":      domain.GenreBoysLove,
	"girlslove":     domain.GenreGirlsLove,
	"yaoi":          domain.GenreYaoi,
	"yuri":          domain.GenreYuri,
	"historical":    domain.GenreHistorical,
	"military":      domain.GenreMilitary,
	"music":         domain.GenreMusic,
	"medical":       domain.GenreMedical,
	"cooking":       domain.GenreCooking,
	"crime":         domain.GenreCrime,
	"doujinshi":     domain.GenreDoujinshi,
	"oneshot":       domain.GenreOneShot,
	"magic":         domain.GenreMagic,
	"demons":        domain.GenreDemons,
	"vampires":      domain.GenreVampires,
	"zombies":       domain.GenreZombies,
	"survival":      domain.GenreSurvival,
	"tragedy":       domain.GenreTragedy,
	"reincarnation": domain.GenreReincarnation,
	"timetravel":    domain.GenreTimeTravel,
	"villainess":    domain.GenreVillainess,
	"videogames":    domain.GenreVideoGames,
	"fullcolor":     domain.GenreFullColor,
	"webtoon":       domain.GenreWebComic,
	"longstrip":     domain.GenreLongStrip,
}

func genreOf(name string) domain.Genre {
	if g, ok := genres[nonAlnum.ReplaceAllString(strings.ToLower(name), "")]; ok {
		return g
	}
	return domain.GenreUnknown
}

func genresOf(names []string) []domain.Genre {
	out := make([]domain.Genre, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			out = append(out, genreOf(n))
		}
	}
	return domain.UniqueGenres(out)
}

// inferType guesses the format from genre labels, which is all extensions
// expose.
func inferType(names []string) domain.SerieType {
	has := func(subs ...string) bool {
		for _, n := range names {
			n = strings.ToLower(n)
			for _, s := range subs {
				if strings.Contains(n, s) {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("manhwa"):
		return domain.TypeManhwa
	case has("manhua"):
		return domain.TypeManhua
	case has("webtoon", "long strip"):
		return domain.TypeWebtoon
	case has("doujinshi"):
		return domain.TypeDoujinshi
	case has("novel"):
		return domain.TypeNovel
	default:
		return domain.TypeManga
	}
}
