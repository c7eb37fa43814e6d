package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/service"
)

func (s *Server) registerSourceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSources",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources",
		Summary:     "List sources",
		Tags:        []string{"Sources"},
	}, s.handleListSources)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSourcesHealth",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources/health",
		Summary:     "Sources health",
		Description: "Returns tracking health per source with pending import counts",
		Tags:        []string{"Sources"},
	}, s.handleSourcesHealth)

	huma.Register(s.api, huma.Operation{
		OperationID:   "syncSources",
		Method:        http.MethodPost,
		Path:          "/api/v1/sources/sync",
		Summary:       "Sync sources",
		Description:   "Queues a sync of the adapter registry into the catalog",
		Tags:          []string{"Sources"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleSyncSources)

	huma.Register(s.api, huma.Operation{
		OperationID:   "refreshSource",
		Method:        http.MethodPost,
		Path:          "/api/v1/sources/{id}/refresh",
		Summary:       "Refresh source",
		Description:   "Queues a check of the latest updates of one source",
		Tags:          []string{"Sources"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleRefreshSource)
}

// ListSourcesOutput lists catalog sources.
type ListSourcesOutput struct {
	Body struct {
		Sources []*domain.Source `json:"sources" doc:"Sources known to the catalog"`
	}
}

// SourcesHealthOutput wraps the health report.
type SourcesHealthOutput struct {
	Body *service.SourcesHealth
}

// SourceInput selects a source by id.
type SourceInput struct {
	ID string `path:"id" doc:"Source ID, e.g. mangadex"`
}

func (s *Server) handleListSources(ctx context.Context, _ *struct{}) (*ListSourcesOutput, error) {
	sources, err := s.catalog.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ListSourcesOutput{}
	resp.Body.Sources = sources
	return resp, nil
}

func (s *Server) handleSourcesHealth(ctx context.Context, _ *struct{}) (*SourcesHealthOutput, error) {
	health, err := s.services.Admin.SourcesHealth(ctx)
	if err != nil {
		return nil, err
	}
	return &SourcesHealthOutput{Body: health}, nil
}

func (s *Server) handleSyncSources(ctx context.Context, _ *struct{}) (*JobOutput, error) {
	job, err := s.services.Sources.Enqueue(ctx, "api")
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleRefreshSource(ctx context.Context, input *SourceInput) (*JobOutput, error) {
	job, err := s.services.Admin.RefreshSource(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}
