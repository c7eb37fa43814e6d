package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/source"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "importByURL",
		Method:        http.MethodPost,
		Path:          "/api/v1/imports/url",
		Summary:       "Import by URL",
		Description:   "Resolves a public serie URL to its source and queues the import",
		Tags:          []string{"Imports"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   huma.Middlewares{s.rateLimited(s.importLimiter)},
	}, s.handleImportByURL)

	huma.Register(s.api, huma.Operation{
		OperationID:   "importFromSource",
		Method:        http.MethodPost,
		Path:          "/api/v1/imports",
		Summary:       "Import catalog entry",
		Description:   "Queues the import of one entry of a source catalog",
		Tags:          []string{"Imports"},
		DefaultStatus: http.StatusAccepted,
		Middlewares:   huma.Middlewares{s.rateLimited(s.importLimiter)},
	}, s.handleImportFromSource)

	huma.Register(s.api, huma.Operation{
		OperationID: "parseSerieURL",
		Method:      http.MethodPost,
		Path:        "/api/v1/imports/parse-url",
		Summary:     "Parse serie URL",
		Description: "Returns the source and catalog id a public serie URL points to, without importing",
		Tags:        []string{"Imports"},
	}, s.handleParseURL)
}

// ImportByURLInput carries a public serie URL.
type ImportByURLInput struct {
	Body struct {
		URL string `json:"url" format:"uri" minLength:"1" doc:"Public serie page URL"`
	}
}

// ImportFromSourceInput names a catalog entry.
type ImportFromSourceInput struct {
	Body struct {
		SourceID   string `json:"source_id" minLength:"1" doc:"Source ID"`
		ExternalID string `json:"external_id" minLength:"1" doc:"Serie ID in the source catalog"`
	}
}

// ImportOutput is a queued import.
type ImportOutput struct {
	Body *service.ImportRequest
}

// ParseURLOutput is a resolved serie URL.
type ParseURLOutput struct {
	Body source.ParsedURL
}

func (s *Server) handleImportByURL(ctx context.Context, input *ImportByURLInput) (*ImportOutput, error) {
	req, err := s.services.Import.ImportURL(ctx, input.Body.URL)
	if err != nil {
		return nil, err
	}
	return &ImportOutput{Body: req}, nil
}

func (s *Server) handleImportFromSource(ctx context.Context, input *ImportFromSourceInput) (*ImportOutput, error) {
	req, err := s.services.Import.Import(ctx, input.Body.SourceID, input.Body.ExternalID)
	if err != nil {
		return nil, err
	}
	return &ImportOutput{Body: req}, nil
}

func (s *Server) handleParseURL(ctx context.Context, input *ImportByURLInput) (*ParseURLOutput, error) {
	parsed, err := s.services.Import.ParseURL(ctx, input.Body.URL)
	if err != nil {
		return nil, err
	}
	return &ParseURLOutput{Body: parsed}, nil
}
