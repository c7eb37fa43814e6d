package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/service"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getOverview",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/overview",
		Summary:     "Overview",
		Description: "Returns catalog totals and the job counts of every queue",
		Tags:        []string{"Admin"},
	}, s.handleOverview)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFailedStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/failed",
		Summary:     "Failed page stats",
		Description: "Counts incomplete chapters and retryable pages across the catalog",
		Tags:        []string{"Admin"},
	}, s.handleFailedStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "retryAllFailed",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/retry-failed",
		Summary:     "Retry failed pages",
		Description: "Queues page retries for chapters with retryable pages across the catalog",
		Tags:        []string{"Admin"},
	}, s.handleRetryAllFailed)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reindex",
		Summary:     "Rebuild search index",
		Description: "Rebuilds the search index from the catalog",
		Tags:        []string{"Admin"},
	}, s.handleReindex)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchSeries",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search series",
		Description: "Full-text search over the indexed series with optional filters and facets",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// OverviewOutput wraps the overview.
type OverviewOutput struct {
	Body *service.Overview
}

// ReindexOutput reports the number of indexed series.
type ReindexOutput struct {
	Body struct {
		Indexed int `json:"indexed" doc:"Number of indexed series"`
	}
}

// SearchInput holds search parameters.
type SearchInput struct {
	Query   string   `query:"q" doc:"Search query"`
	Genres  []string `query:"genre" doc:"Genre filter"`
	Status  []string `query:"status" doc:"Status filter"`
	Types   []string `query:"type" doc:"Type filter"`
	Sources []string `query:"source" doc:"Source filter"`
	Sort    string   `query:"sort" enum:"relevance,title,recent" default:"relevance" doc:"Sort field"`
	Order   string   `query:"order" enum:"asc,desc" default:"desc" doc:"Sort order"`
	Facets  bool     `query:"facets" default:"true" doc:"Include facet counts"`
	Limit   int      `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
	Offset  int      `query:"offset" minimum:"0" default:"0" doc:"Hits to skip"`
}

// SearchOutput wraps one page of hits.
type SearchOutput struct {
	Body *search.Result
}

func (s *Server) handleOverview(ctx context.Context, _ *struct{}) (*OverviewOutput, error) {
	overview, err := s.services.Admin.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return &OverviewOutput{Body: overview}, nil
}

func (s *Server) handleFailedStats(ctx context.Context, _ *struct{}) (*FailedStatsOutput, error) {
	stats, err := s.services.Admin.FailedStats(ctx, "")
	if err != nil {
		return nil, err
	}
	return &FailedStatsOutput{Body: stats}, nil
}

func (s *Server) handleRetryAllFailed(ctx context.Context, _ *struct{}) (*RetriedOutput, error) {
	n, err := s.services.Admin.RetryFailed(ctx, "")
	if err != nil {
		return nil, err
	}
	resp := &RetriedOutput{}
	resp.Body.Retried = n
	return resp, nil
}

func (s *Server) handleReindex(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	n, err := s.services.Admin.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ReindexOutput{}
	resp.Body.Indexed = n
	return resp, nil
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	result, err := s.services.Indexer.Search(ctx, search.Params{
		Query:         input.Query,
		Genres:        input.Genres,
		Status:        input.Status,
		Types:         input.Types,
		SourceIDs:     input.Sources,
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.Sort,
		SortOrder:     input.Order,
		IncludeFacets: input.Facets,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}
