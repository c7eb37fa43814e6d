package mangadex

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
)

// Raw API response types (internal)

// localized is a locale-keyed string map. The API sends [] when empty.
type localized map[string]string

func (l *localized) UnmarshalJSON(data []byte) error {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		*l = localized{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = m
	return nil
}

type rawRelationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes *struct {
		Name     string  `json:"name"`
		FileName string  `json:"fileName"`
		Website  *string `json:"website"`
	} `json:"attributes"`
}

type rawTag struct {
	ID         string `json:"id"`
	Attributes struct {
		Group string `json:"group"`
	} `json:"attributes"`
}

type rawManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title            localized   `json:"title"`
		AltTitles        []localized `json:"altTitles"`
		Description      localized   `json:"description"`
		OriginalLanguage string      `json:"originalLanguage"`
		Status           string      `json:"status"`
		State            *string     `json:"state"`
		Tags             []rawTag    `json:"tags"`
	} `json:"attributes"`
	Relationships []rawRelationship `json:"relationships"`
}

type rawChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Volume             *string `json:"volume"`
		Chapter            *string `json:"chapter"`
		Title              *string `json:"title"`
		TranslatedLanguage string  `json:"translatedLanguage"`
		ExternalURL        *string `json:"externalUrl"`
		PublishAt          string  `json:"publishAt"`
		Pages              int     `json:"pages"`
	} `json:"attributes"`
	Relationships []rawRelationship `json:"relationships"`
}

type collection[T any] struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
	Data   []T `json:"data"`
}

func (c collection[T]) hasNext() bool {
	return c.Offset+c.Limit < c.Total
}

type rawAtHome struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}

// addLocalized copies values whose locale maps to a known language.
func addLocalized(dst domain.MultiLanguage, values localized) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		lang, err := languages.Canonical(k)
		if err != nil {
			continue
		}
		dst.Add(lang, strings.TrimSpace(values[k]))
	}
}

func (a *Adapter) coverURL(m *rawManga) string {
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes != nil && rel.Attributes.FileName != "" {
			return fmt.Sprintf("%s/covers/%s/%s", a.uploadsURL, m.ID, rel.Attributes.FileName)
		}
	}
	return noImageURL
}

func (a *Adapter) toSearchItem(m *rawManga) source.SearchItem {
	title := domain.MultiLanguage{}
	addLocalized(title, m.Attributes.Title)
	return source.SearchItem{ID: m.ID, Title: title, Cover: a.coverURL(m)}
}

func (a *Adapter) toSerie(m *rawManga) (*source.Serie, error) {
	serie := &source.Serie{
		ID:              m.ID,
		Title:           domain.MultiLanguage{},
		AlternateTitles: domain.MultiLanguage{},
		Synopsis:        domain.MultiLanguage{},
		Cover:           a.coverURL(m),
		ExternalURL:     a.SerieURL(m.ID),
	}
	addLocalized(serie.Title, m.Attributes.Title)
	for _, alt := range m.Attributes.AltTitles {
		addLocalized(serie.AlternateTitles, alt)
	}
	synopsis := domain.MultiLanguage{}
	addLocalized(synopsis, m.Attributes.Description)
	for lang, values := range synopsis {
		for _, v := range values {
			serie.Synopsis.Add(lang, source.Markdown(v))
		}
	}

	// Format tags (long strip, web comic, doujinshi) drive the type; only
	// the genre group is kept as genres.
	var genreIDs []string
	tags := map[domain.Genre]bool{}
	for _, t := range m.Attributes.Tags {
		g := vocabulary.Genre(t.ID)
		tags[g] = true
		if t.Attributes.Group == "genre" {
			genreIDs = append(genreIDs, t.ID)
		}
	}
	serie.Genres = vocabulary.GenresOf(genreIDs)

	st, err := vocabulary.Status.Canonical(m.Attributes.Status)
	if err != nil {
		return nil, err
	}
	serie.Status = []domain.SerieStatus{st}
	if m.Attributes.State != nil && *m.Attributes.State == "published" && st != domain.StatusPublished {
		serie.Status = append(serie.Status, domain.StatusPublished)
	}

	original, err := languages.Canonical(m.Attributes.OriginalLanguage)
	if err != nil {
		original = domain.LanguageJp
	}
	serie.Type = inferType(original, tags)

	seenAuthor, seenArtist := map[string]bool{}, map[string]bool{}
	for _, rel := range m.Relationships {
		if rel.Attributes == nil || rel.Attributes.Name == "" {
			continue
		}
		name := rel.Attributes.Name
		switch {
		case rel.Type == "author" && !seenAuthor[name]:
			seenAuthor[name] = true
			serie.Authors = append(serie.Authors, name)
		case rel.Type == "artist" && !seenArtist[name]:
			seenArtist[name] = true
			serie.Artists = append(serie.Artists, name)
		}
	}
	return serie, nil
}

func inferType(original domain.Language, tags map[domain.Genre]bool) domain.SerieType {
	switch {
	case tags[domain.GenreDoujinshi]:
		return domain.TypeDoujinshi
	case original == domain.LanguageJp || original == domain.LanguageJpRo:
		return domain.TypeManga
	case original == domain.LanguageKo || original == domain.LanguageKoRo:
		if tags[domain.GenreLongStrip] || tags[domain.GenreWebComic] {
			return domain.TypeWebtoon
		}
		return domain.TypeManhwa
	case original == domain.LanguageZh || original == domain.LanguageZhHk:
		return domain.TypeManhua
	default:
		return domain.TypeComic
	}
}

// toChapter converts a feed entry. Chapters hosted elsewhere (no pages here)
// are skipped with ok=false.
func (a *Adapter) toChapter(c *rawChapter) (source.Chapter, bool, error) {
	attrs := c.Attributes
	if attrs.ExternalURL != nil && attrs.Pages == 0 {
		return source.Chapter{}, false, nil
	}

	lang, err := languages.Canonical(attrs.TranslatedLanguage)
	if err != nil {
		return source.Chapter{}, false, err
	}

	var number float64
	if attrs.Chapter != nil {
		if n, err := strconv.ParseFloat(*attrs.Chapter, 64); err == nil {
			number = n
		}
	}

	ch := source.Chapter{
		ID:            c.ID,
		Title:         domain.MultiLanguage{},
		ChapterNumber: number,
		Language:      lang,
		ExternalURL:   a.siteURL + "/chapter/" + c.ID,
	}
	if attrs.Volume != nil && *attrs.Volume != "" {
		name := *attrs.Volume
		ch.VolumeName = &name
		if v, err := strconv.ParseFloat(name, 64); err == nil {
			n := int(math.Trunc(v))
			ch.VolumeNumber = &n
		}
	}

	title := ""
	if attrs.Title != nil {
		title = strings.TrimSpace(*attrs.Title)
	}
	if title == "" {
		title = "Chapter " + strconv.FormatFloat(number, 'f', -1, 64)
	}
	ch.Title.Add(lang, title)

	if t, err := time.Parse(time.RFC3339, attrs.PublishAt); err == nil {
		ch.DateUpload = t
	} else {
		ch.DateUpload = source.UnknownUploadDate
	}

	for _, rel := range c.Relationships {
		if rel.Type != "scanlation_group" {
			continue
		}
		group := source.Group{ID: rel.ID, Name: "Unknown Group"}
		if rel.Attributes != nil {
			if rel.Attributes.Name != "" {
				group.Name = rel.Attributes.Name
			}
			if rel.Attributes.Website != nil {
				group.URL = *rel.Attributes.Website
			}
		}
		ch.Groups = append(ch.Groups, group)
	}
	return ch, true, nil
}
