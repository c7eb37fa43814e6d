package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for series documents.
//
// Titles come in many languages, so text fields use the standard analyzer
// (unicode tokens, lowercased, no stemming). Genres, status, type and source
// ids are keywords for exact filtering and faceting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", title)

	titles := bleve.NewTextFieldMapping()
	titles.Analyzer = standard.Name
	titles.Store = true
	titles.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("titles", titles)

	alternate := bleve.NewTextFieldMapping()
	alternate.Analyzer = standard.Name
	alternate.Store = true
	docMapping.AddFieldMappingsAt("alternate_titles", alternate)

	// Synopses are searchable but too large to store.
	synopses := bleve.NewTextFieldMapping()
	synopses.Analyzer = standard.Name
	synopses.Store = false
	docMapping.AddFieldMappingsAt("synopses", synopses)

	for _, field := range []string{"authors", "artists"} {
		people := bleve.NewTextFieldMapping()
		people.Analyzer = standard.Name
		people.Store = true
		docMapping.AddFieldMappingsAt(field, people)
	}

	// --- Keyword fields ---

	for _, field := range []string{"id", "type", "genres", "status", "source_ids", "external_ids"} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = true
		docMapping.AddFieldMappingsAt(field, kw)
	}

	poster := bleve.NewTextFieldMapping()
	poster.Index = false
	poster.Store = true
	docMapping.AddFieldMappingsAt("poster", poster)

	// --- Numeric fields ---

	updatedAt := bleve.NewNumericFieldMapping()
	updatedAt.Store = true
	docMapping.AddFieldMappingsAt("updated_at", updatedAt)

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
