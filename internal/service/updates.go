package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// refreshBackoffDays is how long a mirror with n consecutive failures waits
// before the weekly refresh checks it again, indexed by min(n, 5).
var refreshBackoffDays = [...]int{0, 0, 1, 3, 7, 14}

// UpdateReport summarizes one scheduler run.
type UpdateReport struct {
	Sources int `json:"sources"`
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// UpdateService finds series needing a refresh and queues their imports.
type UpdateService struct {
	store    *sqlite.Store
	registry *source.Registry
	broker   *queue.Broker
	cfg      config.SchedulerConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewUpdateService creates a new update service.
func NewUpdateService(store *sqlite.Store, registry *source.Registry, broker *queue.Broker, cfg config.SchedulerConfig, logger *slog.Logger) *UpdateService {
	return &UpdateService{
		store:    store,
		registry: registry,
		broker:   broker,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Handle runs an update-scheduler job.
func (s *UpdateService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.UpdateSchedulerPayload](job)
	if err != nil {
		return nil, err
	}
	switch p.Type {
	case queue.JobFetchLatest:
		return s.FetchLatest(ctx, p.SourceID)
	case queue.JobRefreshAll:
		return s.RefreshAll(ctx)
	case queue.JobRetryFailedPages:
		return s.RetryFailedPages(ctx)
	default:
		return nil, queue.Unrecoverable(domainerrors.Validationf("unknown scheduler task %q", p.Type))
	}
}

// FetchLatest walks the latest-updates listing of every tracked source (or
// only sourceID) until it reaches the ids seen on the previous run, then
// queues an import for each newly listed series the catalog tracks.
func (s *UpdateService) FetchLatest(ctx context.Context, sourceID string) (*UpdateReport, error) {
	sources, err := s.store.ListTrackedSources(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{}
	for _, src := range sources {
		adapter, err := s.registry.Get(ctx, src.ID)
		if err != nil {
			s.logger.Warn("tracked source has no adapter", "source_id", src.ID, "error", err)
			continue
		}
		report.Sources++

		fresh, collected := s.discover(ctx, adapter, src.LastFetchFingerprint)
		if len(collected) > 0 {
			fingerprint := collected[:min(len(collected), s.cfg.FingerprintSize)]
			if err := s.store.SetSourceFingerprint(ctx, src.ID, fingerprint); err != nil {
				return report, err
			}
		}

		queued, skipped, err := s.queueTracked(ctx, src.ID, fresh)
		if err != nil {
			return report, err
		}
		report.Queued += queued
		report.Skipped += skipped
		s.logger.Info("latest updates checked",
			"source_id", src.ID,
			"listed", len(collected),
			"new", len(fresh),
			"queued", queued)
	}
	return report, nil
}

// discover pages through the latest listing. It stops at the first page
// error, at the last page, at MaxPages, or once the stored fingerprint shows
// up; ids listed before the fingerprint are new.
func (s *UpdateService) discover(ctx context.Context, adapter source.Source, fingerprint []string) (fresh, collected []string) {
	sourceID := adapter.Info().ID
	pos := -1
	for page := 1; page <= s.cfg.MaxPages; page++ {
		res, err := adapter.FetchLatest(ctx, page)
		if err != nil {
			s.logger.Warn("latest page failed", "source_id", sourceID, "page", page, "error", err)
			break
		}
		collected = append(collected, source.IDs(res.Items)...)
		if pos = fingerprintPosition(collected, fingerprint); pos != -1 {
			break
		}
		if !res.HasNextPage {
			break
		}
	}
	if pos != -1 {
		return collected[:pos], collected
	}
	return collected, collected
}

// fingerprintPosition finds fingerprint as a contiguous run of ids. An
// empty fingerprint never matches.
func fingerprintPosition(ids, fingerprint []string) int {
	if len(fingerprint) == 0 {
		return -1
	}
	for i := 0; i+len(fingerprint) <= len(ids); i++ {
		if slices.Equal(ids[i:i+len(fingerprint)], fingerprint) {
			return i
		}
	}
	return -1
}

// queueTracked queues imports for the ids a source tracks, skipping those
// checked within the RecentlyChecked window.
func (s *UpdateService) queueTracked(ctx context.Context, sourceID string, ids []string) (queued, skipped int, err error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}
	entries, err := s.store.TrackedEntries(ctx, sourceID)
	if err != nil {
		return 0, 0, err
	}
	tracked := make(map[string]domain.TrackedEntry, len(entries))
	for _, e := range entries {
		tracked[e.ExternalID] = e
	}

	now := s.now()
	for _, externalID := range ids {
		e, ok := tracked[externalID]
		if !ok {
			continue
		}
		if e.LastCheckedAt != nil && now.Sub(*e.LastCheckedAt) < s.cfg.RecentlyChecked {
			skipped++
			continue
		}
		if err := s.queueImport(ctx, sourceID, externalID, queue.SerieInserterJobID(sourceID, externalID), 0); err != nil {
			return queued, skipped, err
		}
		queued++
	}
	return queued, skipped, nil
}

// RefreshAll queues an import for every tracked mirror of every enabled
// source, spread over RefreshSpread and never faster than the source's rate
// limit. Failing mirrors back off by their failure count.
func (s *UpdateService) RefreshAll(ctx context.Context) (*UpdateReport, error) {
	sources, err := s.store.ListTrackedSources(ctx, "")
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{}
	now := s.now()
	for _, src := range sources {
		entries, err := s.store.TrackedEntries(ctx, src.ID)
		if err != nil {
			return report, err
		}
		report.Sources++

		due := make([]domain.TrackedEntry, 0, len(entries))
		for _, e := range entries {
			if backedOff(e, now) {
				report.Skipped++
				continue
			}
			due = append(due, e)
		}

		interval := max(src.RequestInterval(), s.cfg.RefreshSpread/time.Duration(max(len(due), 1)))
		for i, e := range due {
			if err := s.queueImport(ctx, src.ID, e.ExternalID, "", time.Duration(i)*interval); err != nil {
				return report, err
			}
			report.Queued++
		}
		s.logger.Info("refresh scheduled",
			"source_id", src.ID,
			"queued", len(due),
			"interval", interval)
	}
	return report, nil
}

// backedOff reports whether a failing mirror is still inside its backoff.
func backedOff(e domain.TrackedEntry, now time.Time) bool {
	if e.ConsecutiveFailures <= 0 || e.LastCheckedAt == nil {
		return false
	}
	wait := time.Duration(refreshBackoffDays[min(e.ConsecutiveFailures, 5)]) * 24 * time.Hour
	return now.Sub(*e.LastCheckedAt) < wait
}

// RetryFailedPages queues a page-retry job for a batch of chapters with
// retryable pages.
func (s *UpdateService) RetryFailedPages(ctx context.Context) (*UpdateReport, error) {
	queued, err := queueRetries(ctx, s.store, s.broker, "", s.cfg.RetryBatchSize, s.cfg.RetryStagger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("page retries scheduled", "chapters", queued)
	return &UpdateReport{Queued: queued}, nil
}

// queueImport adds a serie-inserter job. Refresh jobs are delayed for up to
// a day, so they get generated ids and never shadow an immediate import.
func (s *UpdateService) queueImport(ctx context.Context, sourceID, externalID, jobID string, delay time.Duration) error {
	_, err := s.broker.Add(ctx, queue.SerieInserter, queue.JobInsert,
		queue.SerieInserterPayload{SourceID: sourceID, SourceSerieID: externalID},
		queue.JobOptions{JobID: jobID, Delay: delay})
	return err
}

// queueRetries queues page-retry jobs for up to limit chapters of one series
// (or all series), staggered so their downloads do not start together.
func queueRetries(ctx context.Context, catalog *sqlite.Store, broker *queue.Broker, serieID string, limit int, stagger time.Duration) (int, error) {
	chapterIDs, err := catalog.RetryableChapters(ctx, serieID, limit)
	if err != nil {
		return 0, err
	}
	for i, chapterID := range chapterIDs {
		_, err := broker.Add(ctx, queue.PageRetry, queue.JobPageRetry,
			queue.PageRetryPayload{ChapterID: chapterID},
			queue.JobOptions{JobID: queue.PageRetryJobID(chapterID), Delay: time.Duration(i) * stagger})
		if err != nil {
			return i, err
		}
	}
	return len(chapterIDs), nil
}
