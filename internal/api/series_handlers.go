package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

func (s *Server) registerSeriesRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSeries",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}",
		Summary:     "Get series",
		Description: "Returns a series with its source mirrors and chapters",
		Tags:        []string{"Series"},
	}, s.handleGetSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteSeries",
		Method:      http.MethodDelete,
		Path:        "/api/v1/series/{id}",
		Summary:     "Delete series",
		Description: "Hides the series and schedules its hard deletion after the grace period",
		Tags:        []string{"Series"},
	}, s.handleDeleteSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreSeries",
		Method:      http.MethodPost,
		Path:        "/api/v1/series/{id}/restore",
		Summary:     "Restore series",
		Description: "Cancels a pending deletion",
		Tags:        []string{"Series"},
	}, s.handleRestoreSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSeriesDeletion",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}/deletion",
		Summary:     "Deletion status",
		Tags:        []string{"Series"},
	}, s.handleDeletionStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSeriesFailedStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}/failed",
		Summary:     "Failed page stats",
		Description: "Counts the incomplete chapters and retryable pages of a series",
		Tags:        []string{"Series"},
	}, s.handleSeriesFailedStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "retrySeriesFailed",
		Method:      http.MethodPost,
		Path:        "/api/v1/series/{id}/retry-failed",
		Summary:     "Retry failed pages",
		Description: "Queues page retries for every chapter of the series with retryable pages",
		Tags:        []string{"Series"},
	}, s.handleRetrySeriesFailed)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshSeries",
		Method:      http.MethodPost,
		Path:        "/api/v1/series/{id}/refresh",
		Summary:     "Refresh series",
		Description: "Queues a re-import of every source mirror of the series",
		Tags:        []string{"Series"},
	}, s.handleRefreshSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "lockSeriesField",
		Method:      http.MethodPut,
		Path:        "/api/v1/series/{id}/locks/{field}",
		Summary:     "Lock field",
		Description: "Pins a display field so re-indexing stops recomputing it",
		Tags:        []string{"Series"},
	}, s.handleLockField)

	huma.Register(s.api, huma.Operation{
		OperationID: "unlockSeriesField",
		Method:      http.MethodDelete,
		Path:        "/api/v1/series/{id}/locks/{field}",
		Summary:     "Unlock field",
		Description: "Releases a display field; unlocking the cover drops the custom cover",
		Tags:        []string{"Series"},
	}, s.handleUnlockField)

	huma.Register(s.api, huma.Operation{
		OperationID:   "setSeriesCover",
		Method:        http.MethodPut,
		Path:          "/api/v1/series/{id}/cover",
		Summary:       "Set custom cover",
		Description:   "Locks the cover and queues the upload of the given image",
		Tags:          []string{"Series"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleSetCover)

	huma.Register(s.api, huma.Operation{
		OperationID: "acknowledgeRemovals",
		Method:      http.MethodPost,
		Path:        "/api/v1/series/{id}/chapters/acknowledge-removals",
		Summary:     "Acknowledge removed chapters",
		Description: "Marks chapters that disappeared from their source as seen",
		Tags:        []string{"Series"},
	}, s.handleAcknowledgeRemovals)
}

// SeriesInput selects a series by id.
type SeriesInput struct {
	ID string `path:"id" doc:"Series ID"`
}

// SeriesDetail is a series with its mirrors and chapters.
type SeriesDetail struct {
	Series   *domain.Series        `json:"series" doc:"Series"`
	Sources  []*domain.SerieSource `json:"sources" doc:"Source mirrors"`
	Chapters []*domain.Chapter     `json:"chapters" doc:"Chapters in reading order"`
}

// SeriesDetailOutput wraps SeriesDetail.
type SeriesDetailOutput struct {
	Body SeriesDetail
}

// DeletionStatusOutput wraps the deletion state of a series.
type DeletionStatusOutput struct {
	Body *service.DeletionStatus
}

// FailedStatsOutput wraps failure counts.
type FailedStatsOutput struct {
	Body sqlite.FailedStats
}

// JobsOutput lists queued jobs.
type JobsOutput struct {
	Body struct {
		Jobs []*domain.Job `json:"jobs" doc:"Queued jobs"`
	}
}

// LockFieldInput names a lockable field.
type LockFieldInput struct {
	ID    string `path:"id" doc:"Series ID"`
	Field string `path:"field" enum:"title,synopsis,cover,status,type" doc:"Display field"`
}

// LockedFieldsOutput returns the pinned fields after a change.
type LockedFieldsOutput struct {
	Body struct {
		LockedFields []domain.LockedField `json:"locked_fields" doc:"Pinned fields"`
	}
}

// SetCoverInput carries the custom cover image URL.
type SetCoverInput struct {
	ID   string `path:"id" doc:"Series ID"`
	Body struct {
		URL string `json:"url" format:"uri" minLength:"1" doc:"Image URL to download"`
	}
}

// AcknowledgeRemovalsInput lists removed chapters to acknowledge.
type AcknowledgeRemovalsInput struct {
	ID   string `path:"id" doc:"Series ID"`
	Body struct {
		ChapterIDs []string `json:"chapter_ids" minItems:"1" doc:"Chapter IDs"`
	}
}

// AcknowledgedOutput reports how many chapters were acknowledged.
type AcknowledgedOutput struct {
	Body struct {
		Acknowledged int `json:"acknowledged" doc:"Number of acknowledged chapters"`
	}
}

func (s *Server) handleGetSeries(ctx context.Context, input *SeriesInput) (*SeriesDetailOutput, error) {
	series, err := s.catalog.GetSeries(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("series %s not found", input.ID)
	}
	if err != nil {
		return nil, err
	}
	mirrors, err := s.catalog.ListSerieSources(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.catalog.ListChapters(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SeriesDetailOutput{Body: SeriesDetail{Series: series, Sources: mirrors, Chapters: chapters}}, nil
}

func (s *Server) handleDeleteSeries(ctx context.Context, input *SeriesInput) (*DeletionStatusOutput, error) {
	status, err := s.services.Deletion.SoftDelete(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeletionStatusOutput{Body: status}, nil
}

func (s *Server) handleRestoreSeries(ctx context.Context, input *SeriesInput) (*DeletionStatusOutput, error) {
	if err := s.services.Deletion.Restore(ctx, input.ID); err != nil {
		return nil, err
	}
	return s.handleDeletionStatus(ctx, input)
}

func (s *Server) handleDeletionStatus(ctx context.Context, input *SeriesInput) (*DeletionStatusOutput, error) {
	status, err := s.services.Deletion.Status(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeletionStatusOutput{Body: status}, nil
}

func (s *Server) handleSeriesFailedStats(ctx context.Context, input *SeriesInput) (*FailedStatsOutput, error) {
	stats, err := s.services.Admin.FailedStats(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &FailedStatsOutput{Body: stats}, nil
}

func (s *Server) handleRetrySeriesFailed(ctx context.Context, input *SeriesInput) (*RetriedOutput, error) {
	n, err := s.services.Admin.RetryFailed(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	resp := &RetriedOutput{}
	resp.Body.Retried = n
	return resp, nil
}

func (s *Server) handleRefreshSeries(ctx context.Context, input *SeriesInput) (*JobsOutput, error) {
	jobs, err := s.services.Admin.RefreshSerie(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	resp := &JobsOutput{}
	resp.Body.Jobs = jobs
	return resp, nil
}

func (s *Server) handleLockField(ctx context.Context, input *LockFieldInput) (*LockedFieldsOutput, error) {
	if err := s.services.Admin.LockField(ctx, input.ID, domain.LockedField(input.Field)); err != nil {
		return nil, err
	}
	return s.lockedFields(ctx, input.ID)
}

func (s *Server) handleUnlockField(ctx context.Context, input *LockFieldInput) (*LockedFieldsOutput, error) {
	if err := s.services.Admin.UnlockField(ctx, input.ID, domain.LockedField(input.Field)); err != nil {
		return nil, err
	}
	return s.lockedFields(ctx, input.ID)
}

func (s *Server) lockedFields(ctx context.Context, serieID string) (*LockedFieldsOutput, error) {
	series, err := s.catalog.GetSeries(ctx, serieID)
	if err != nil {
		return nil, err
	}
	resp := &LockedFieldsOutput{}
	resp.Body.LockedFields = series.LockedFields
	return resp, nil
}

func (s *Server) handleSetCover(ctx context.Context, input *SetCoverInput) (*JobOutput, error) {
	job, err := s.services.Cover.SetCustomCover(ctx, input.ID, input.Body.URL)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleAcknowledgeRemovals(ctx context.Context, input *AcknowledgeRemovalsInput) (*AcknowledgedOutput, error) {
	n, err := s.services.Admin.AcknowledgeRemovals(ctx, input.ID, input.Body.ChapterIDs)
	if err != nil {
		return nil, err
	}
	resp := &AcknowledgedOutput{}
	resp.Body.Acknowledged = n
	return resp, nil
}
