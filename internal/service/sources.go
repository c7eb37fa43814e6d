package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// sourcesSyncJobID collapses sync requests arriving while one is queued.
const sourcesSyncJobID = "sources-sync"

// SyncResult reports one registry sync.
type SyncResult struct {
	Upserted int      `json:"upserted"`
	Disabled []string `json:"disabled"`
}

// SourceSyncService mirrors the adapter registry into the catalog's
// sources table.
type SourceSyncService struct {
	store    *sqlite.Store
	registry *source.Registry
	broker   *queue.Broker
	logger   *slog.Logger
}

// NewSourceSyncService creates a new source sync service.
func NewSourceSyncService(store *sqlite.Store, registry *source.Registry, broker *queue.Broker, logger *slog.Logger) *SourceSyncService {
	return &SourceSyncService{
		store:    store,
		registry: registry,
		broker:   broker,
		logger:   logger,
	}
}

// Sync upserts one row per adapter. Force-disabled adapters and rows no
// adapter provides anymore are disabled, every other row is enabled.
func (s *SourceSyncService) Sync(ctx context.Context) (*SyncResult, error) {
	adapters, err := s.registry.All(ctx)
	if err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(adapters))
	result := &SyncResult{Disabled: []string{}}
	for _, a := range adapters {
		sourceID := a.Info().ID
		enabled := !s.registry.IsForceDisabled(sourceID)
		if err := s.store.UpsertSource(ctx, source.Row(a, enabled)); err != nil {
			return nil, fmt.Errorf("upsert source %s: %w", sourceID, err)
		}
		active[sourceID] = enabled
		result.Upserted++
	}

	rows, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if !active[row.ID] {
			result.Disabled = append(result.Disabled, row.ID)
		}
	}
	if err := s.store.SetSourcesEnabled(ctx, result.Disabled); err != nil {
		return nil, fmt.Errorf("apply enabled flags: %w", err)
	}

	s.logger.Info("sources synced",
		"upserted", result.Upserted,
		"disabled", result.Disabled)
	return result, nil
}

// Enqueue schedules a sync on the sources-sync queue.
func (s *SourceSyncService) Enqueue(ctx context.Context, reason string) (*domain.Job, error) {
	return s.broker.Add(ctx, queue.SourcesSync, queue.JobSyncSources,
		queue.SourcesSyncPayload{Reason: reason},
		queue.JobOptions{JobID: sourcesSyncJobID})
}

// Reload applies a changed sources configuration: the registry rebuilds its
// adapters on next use and a sync is queued so the catalog follows.
func (s *SourceSyncService) Reload(ctx context.Context, cfg config.SourcesConfig) {
	s.registry.Invalidate(cfg)
	if _, err := s.Enqueue(ctx, "config reload"); err != nil {
		s.logger.Error("failed to enqueue sources sync", "error", err)
	}
}

// Handle runs a sources-sync job.
func (s *SourceSyncService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.SourcesSyncPayload](job)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("syncing sources", "reason", p.Reason)
	return s.Sync(ctx)
}
