// Package search keeps the full-text index of series: one document per
// series carrying every title, synopsis and credit of its mirrors.
package search

import (
	"slices"
	"strings"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Document is the indexed view of a series.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"` // display title in the primary language

	// Every title, synopsis and alternate title of every mirror, deduped.
	Titles          []string `json:"titles,omitempty"`
	Synopses        []string `json:"synopses,omitempty"`
	AlternateTitles []string `json:"alternate_titles,omitempty"`

	Authors []string `json:"authors,omitempty"`
	Artists []string `json:"artists,omitempty"`
	Genres  []string `json:"genres,omitempty"`
	Status  []string `json:"status,omitempty"`
	Type    string   `json:"type"`
	Poster  string   `json:"poster,omitempty"`

	SourceIDs   []string `json:"source_ids,omitempty"`
	ExternalIDs []string `json:"external_ids,omitempty"`

	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"type":       d.Type,
		"updated_at": d.UpdatedAt,
	}
	lists := map[string][]string{
		"titles":           d.Titles,
		"synopses":         d.Synopses,
		"alternate_titles": d.AlternateTitles,
		"authors":          d.Authors,
		"artists":          d.Artists,
		"genres":           d.Genres,
		"status":           d.Status,
		"source_ids":       d.SourceIDs,
		"external_ids":     d.ExternalIDs,
	}
	for field, values := range lists {
		if len(values) > 0 {
			m[field] = values
		}
	}
	if d.Poster != "" {
		m["poster"] = d.Poster
	}
	return m
}

// SeriesDocument builds the document of a series from its mirrors. Synopses
// are indexed as plain text.
func SeriesDocument(series *domain.Series, mirrors []*domain.SerieSource) *Document {
	doc := &Document{
		ID:        series.ID,
		Title:     series.Title,
		Type:      string(series.Type),
		UpdatedAt: series.UpdatedAt.UnixMilli(),
	}
	for _, st := range series.Status {
		doc.Status = append(doc.Status, string(st))
	}
	if series.Cover != nil {
		doc.Poster = *series.Cover
	}

	var genres []domain.Genre
	for _, m := range mirrors {
		doc.Titles = append(doc.Titles, m.Title.Flatten()...)
		doc.AlternateTitles = append(doc.AlternateTitles, m.AlternateTitles.Flatten()...)
		for _, s := range m.Synopsis.Flatten() {
			doc.Synopses = append(doc.Synopses, PlainText(s))
		}
		doc.Authors = append(doc.Authors, m.Authors...)
		doc.Artists = append(doc.Artists, m.Artists...)
		genres = append(genres, m.Genres...)
		doc.SourceIDs = append(doc.SourceIDs, m.SourceID)
		doc.ExternalIDs = append(doc.ExternalIDs, m.ExternalID)
	}
	for _, g := range domain.UniqueGenres(genres) {
		doc.Genres = append(doc.Genres, string(g))
	}

	doc.Titles = dedupe(doc.Titles)
	doc.Synopses = dedupe(doc.Synopses)
	doc.AlternateTitles = dedupe(doc.AlternateTitles)
	doc.Authors = dedupe(doc.Authors)
	doc.Artists = dedupe(doc.Artists)
	doc.SourceIDs = dedupe(doc.SourceIDs)
	return doc
}

// dedupe drops blanks and repeats, keeping first occurrences in order.
func dedupe(values []string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
