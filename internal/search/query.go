package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search.
type Params struct {
	Query string

	// Filters; values within one filter are OR-ed, filters are AND-ed.
	Genres    []string
	Status    []string
	Types     []string
	SourceIDs []string

	Limit  int
	Offset int

	SortBy    string // relevance, title or recent
	SortOrder string // asc or desc

	IncludeFacets bool
}

// DefaultParams returns a first page sorted by relevance with facets.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
	}
}

// Result is one page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets,omitzero"`
}

// Hit is a matched series.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Type       string            `json:"type,omitempty"`
	Poster     string            `json:"poster,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Facets are value counts over the matched series.
type Facets struct {
	Genres []FacetCount `json:"genres,omitempty"`
	Types  []FacetCount `json:"types,omitempty"`
	Status []FacetCount `json:"status,omitempty"`
}

// FacetCount is one facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

var facetFields = []string{"genres", "type", "status"}

// Search runs params against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)
	if params.IncludeFacets {
		for _, field := range facetFields {
			req.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}
	if params.Query != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("titles")
	}
	req.Fields = []string{"title", "type", "poster", "genres"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["type"].(string); ok {
			hit.Type = v
		}
		if v, ok := h.Fields["poster"].(string); ok {
			hit.Poster = v
		}
		hit.Genres = storedStrings(h.Fields["genres"])
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, fragments := range h.Fragments {
				if len(fragments) > 0 {
					hit.Highlights[field] = fragments[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	if params.IncludeFacets {
		out.Facets = extractFacets(res)
	}
	return out, nil
}

// storedStrings reads a stored field, which Bleve returns as a string for a
// single value and as []any for several.
func storedStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// buildQuery matches the text against every title with the display title
// boosted, plus fuzzy and prefix matching for typos and autocomplete.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(3.0)

		titles := bleve.NewMatchQuery(q)
		titles.SetField("titles")
		titles.SetBoost(2.0)

		alternate := bleve.NewMatchQuery(q)
		alternate.SetField("alternate_titles")
		alternate.SetBoost(1.5)

		people := bleve.NewMatchQuery(q)
		people.SetField("authors")
		people.SetBoost(0.8)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("titles")
		fuzzy.SetBoost(0.8)

		text := []query.Query{title, titles, alternate, people, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("titles")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	queries = appendTerms(queries, "genres", params.Genres)
	queries = appendTerms(queries, "status", params.Status)
	queries = appendTerms(queries, "type", params.Types)
	queries = appendTerms(queries, "source_ids", params.SourceIDs)

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func appendTerms(queries []query.Query, field string, values []string) []query.Query {
	if len(values) == 0 {
		return queries
	}
	terms := make([]query.Query, len(values))
	for i, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms[i] = tq
	}
	return append(queries, bleve.NewDisjunctionQuery(terms...))
}

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "title":
		if desc {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"updated_at"})
		} else {
			req.SortBy([]string{"-updated_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

func extractFacets(res *bleve.SearchResult) Facets {
	var facets Facets
	collect := func(field string) []FacetCount {
		f, ok := res.Facets[field]
		if !ok || f.Terms == nil {
			return nil
		}
		var out []FacetCount
		for _, term := range f.Terms.Terms() {
			out = append(out, FacetCount{Value: term.Term, Count: term.Count})
		}
		return out
	}
	facets.Genres = collect("genres")
	facets.Types = collect("type")
	facets.Status = collect("status")
	return facets
}
