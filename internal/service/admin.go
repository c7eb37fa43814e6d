package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

const (
	// adminRetryBatch caps one manual retry of failed pages.
	adminRetryBatch = 500
	// adminRetryStagger spaces manually retried chapters.
	adminRetryStagger = 3 * time.Second
	// inserterScan bounds how many pending inserter jobs are attributed to sources.
	inserterScan = 10000
)

// SourceHealthRow is the tracking state of one source plus its pending imports.
type SourceHealthRow struct {
	domain.SourceHealth
	Waiting int `json:"waiting"`
	Active  int `json:"active"`
}

// HealthTotals sums every source.
type HealthTotals struct {
	Sources      int `json:"sources"`
	Enabled      int `json:"enabled"`
	TotalSeries  int `json:"total_series"`
	FailingCount int `json:"failing_count"`
	Waiting      int `json:"waiting"`
	Active       int `json:"active"`
}

// SourcesHealth reports per-source tracking health.
type SourcesHealth struct {
	Sources []SourceHealthRow `json:"sources"`
	Totals  HealthTotals      `json:"totals"`
}

// Overview is the catalog and queue state at a glance.
type Overview struct {
	Catalog sqlite.CatalogStats         `json:"catalog"`
	Queues  map[string]domain.JobCounts `json:"queues"`
}

// AdminService provides maintenance operations over the catalog and queues.
type AdminService struct {
	store   *sqlite.Store
	broker  *queue.Broker
	indexer *IndexerService
	logger  *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(store *sqlite.Store, broker *queue.Broker, indexer *IndexerService, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:   store,
		broker:  broker,
		indexer: indexer,
		logger:  logger,
	}
}

// Overview returns catalog totals and every queue's job counts.
func (s *AdminService) Overview(ctx context.Context) (*Overview, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.broker.AllCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{Catalog: stats, Queues: counts}, nil
}

// FailedStats counts incomplete chapters and retryable pages, for one series
// or the whole catalog when serieID is empty.
func (s *AdminService) FailedStats(ctx context.Context, serieID string) (sqlite.FailedStats, error) {
	if serieID != "" {
		if _, err := s.series(ctx, serieID); err != nil {
			return sqlite.FailedStats{}, err
		}
	}
	return s.store.FailedStats(ctx, serieID)
}

// RetryFailed queues page retries for chapters with retryable pages, for one
// series or the whole catalog when serieID is empty.
func (s *AdminService) RetryFailed(ctx context.Context, serieID string) (int, error) {
	if serieID != "" {
		if _, err := s.series(ctx, serieID); err != nil {
			return 0, err
		}
	}
	queued, err := queueRetries(ctx, s.store, s.broker, serieID, adminRetryBatch, adminRetryStagger)
	if err != nil {
		return queued, err
	}
	s.logger.Info("failed pages queued for retry", "serie_id", serieID, "chapters", queued)
	return queued, nil
}

// SourcesHealth joins the tracking state of each source with its waiting and
// running serie-inserter jobs.
func (s *AdminService) SourcesHealth(ctx context.Context) (*SourcesHealth, error) {
	health, err := s.store.SourceHealth(ctx)
	if err != nil {
		return nil, err
	}

	waiting, err := s.inserterJobsBySource(ctx, domain.JobWaiting, domain.JobDelayed)
	if err != nil {
		return nil, err
	}
	active, err := s.inserterJobsBySource(ctx, domain.JobActive)
	if err != nil {
		return nil, err
	}

	out := &SourcesHealth{Sources: make([]SourceHealthRow, 0, len(health))}
	for _, h := range health {
		row := SourceHealthRow{SourceHealth: h, Waiting: waiting[h.SourceID], Active: active[h.SourceID]}
		out.Sources = append(out.Sources, row)

		out.Totals.Sources++
		if h.Enabled {
			out.Totals.Enabled++
		}
		out.Totals.TotalSeries += h.TotalSeries
		out.Totals.FailingCount += h.FailingCount
		out.Totals.Waiting += row.Waiting
		out.Totals.Active += row.Active
	}
	return out, nil
}

func (s *AdminService) inserterJobsBySource(ctx context.Context, states ...domain.JobState) (map[string]int, error) {
	jobs, err := s.broker.List(ctx, queue.SerieInserter, states, 0, inserterScan)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, job := range jobs {
		var p queue.SerieInserterPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			continue
		}
		out[p.SourceID]++
	}
	return out, nil
}

// RefreshSource queues a latest-updates check of one source.
func (s *AdminService) RefreshSource(ctx context.Context, sourceID string) (*domain.Job, error) {
	if _, err := s.store.GetSource(ctx, sourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("source %s not found", sourceID)
		}
		return nil, err
	}
	return s.broker.Add(ctx, queue.UpdateScheduler, queue.JobFetchLatest,
		queue.UpdateSchedulerPayload{Type: queue.JobFetchLatest, SourceID: sourceID},
		queue.JobOptions{})
}

// RefreshSerie queues an import of every mirror of a series.
func (s *AdminService) RefreshSerie(ctx context.Context, serieID string) ([]*domain.Job, error) {
	mirrors, err := s.store.ListSerieSources(ctx, serieID)
	if err != nil {
		return nil, err
	}
	if len(mirrors) == 0 {
		return nil, domainerrors.NotFoundf("no sources found for series %s", serieID)
	}

	jobs := make([]*domain.Job, 0, len(mirrors))
	for _, m := range mirrors {
		job, err := s.broker.Add(ctx, queue.SerieInserter, queue.JobInsert,
			queue.SerieInserterPayload{SourceID: m.SourceID, SourceSerieID: m.ExternalID},
			queue.JobOptions{JobID: queue.SerieInserterJobID(m.SourceID, m.ExternalID)})
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// AcknowledgeRemovals marks chapters that disappeared from their source as
// seen. Every id must belong to the series and be removed.
func (s *AdminService) AcknowledgeRemovals(ctx context.Context, serieID string, chapterIDs []string) (int, error) {
	if len(chapterIDs) == 0 {
		return 0, domainerrors.Validation("no chapter ids given")
	}
	n, err := s.store.AcknowledgeRemovals(ctx, serieID, chapterIDs)
	if errors.Is(err, store.ErrInvalidInput) {
		return 0, domainerrors.Wrap(err, domainerrors.CodeValidation, "some chapters do not belong to this series or are not removed from source")
	}
	return n, err
}

// LockField pins a display field so the indexer stops recomputing it.
func (s *AdminService) LockField(ctx context.Context, serieID string, field domain.LockedField) error {
	series, err := s.series(ctx, serieID)
	if err != nil {
		return err
	}
	if series.IsLocked(field) {
		return nil
	}
	return s.store.SetLockedFields(ctx, serieID, append(slices.Clone(series.LockedFields), field))
}

// UnlockField releases a display field and re-indexes the series so the
// field follows its primary mirror again. Unlocking the cover drops the
// custom cover.
func (s *AdminService) UnlockField(ctx context.Context, serieID string, field domain.LockedField) error {
	series, err := s.series(ctx, serieID)
	if err != nil {
		return err
	}
	locked := slices.DeleteFunc(slices.Clone(series.LockedFields), func(f domain.LockedField) bool { return f == field })
	if err := s.store.SetLockedFields(ctx, serieID, locked); err != nil {
		return err
	}
	if field == domain.LockCover {
		if err := s.store.SetCustomCover(ctx, serieID, ""); err != nil {
			return err
		}
	}
	_, err = s.broker.Add(ctx, queue.Indexer, queue.JobIndexUpdate,
		queue.IndexerPayload{SerieID: serieID, Type: queue.JobIndexUpdate}, queue.JobOptions{})
	return err
}

// Reindex rebuilds the search index from the catalog.
func (s *AdminService) Reindex(ctx context.Context) (int, error) {
	return s.indexer.Reindex(ctx)
}

func (s *AdminService) series(ctx context.Context, serieID string) (*domain.Series, error) {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("series %s not found", serieID)
	}
	return series, err
}
