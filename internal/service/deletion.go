package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/storage"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// DeletionStatus is the deletion state of a series.
type DeletionStatus struct {
	SerieID           string     `json:"serie_id"`
	IsDeleted         bool       `json:"is_deleted"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	PendingJobID      *string    `json:"pending_job_id,omitempty"`
	ScheduledDeleteAt *time.Time `json:"scheduled_delete_at,omitempty"`
}

// DeletionService drives the two-phase removal of series: a soft delete that
// hides the series and schedules a hard delete after a grace period, which a
// restore cancels.
type DeletionService struct {
	store   *sqlite.Store
	broker  *queue.Broker
	indexer *IndexerService
	objects storage.Store
	grace   time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewDeletionService creates a deletion service with the given grace period.
func NewDeletionService(store *sqlite.Store, broker *queue.Broker, indexer *IndexerService, objects storage.Store, grace time.Duration, logger *slog.Logger) *DeletionService {
	return &DeletionService{
		store:   store,
		broker:  broker,
		indexer: indexer,
		objects: objects,
		grace:   grace,
		now:     time.Now,
		logger:  logger,
	}
}

// SoftDelete hides a series and schedules its hard delete.
func (s *DeletionService) SoftDelete(ctx context.Context, serieID string) (*DeletionStatus, error) {
	series, err := s.getSeries(ctx, serieID)
	if err != nil {
		return nil, err
	}
	if series.IsSoftDeleted() {
		return nil, domainerrors.InvalidStatef("series %s is already marked for deletion", serieID)
	}
	if err := s.softDelete(ctx, serieID); err != nil {
		return nil, err
	}
	return s.Status(ctx, serieID)
}

func (s *DeletionService) softDelete(ctx context.Context, serieID string) error {
	job, err := s.broker.Add(ctx, queue.DeleteSerie, queue.JobHardDelete,
		queue.DeleteSeriePayload{SerieID: serieID, Type: queue.JobHardDelete},
		queue.JobOptions{JobID: queue.HardDeleteJobID(serieID), Delay: s.grace})
	if err != nil {
		return fmt.Errorf("schedule hard delete: %w", err)
	}
	if err := s.store.MarkSoftDeleted(ctx, serieID, s.now(), job.ID); err != nil {
		return err
	}
	s.logger.Info("series soft deleted", "serie_id", serieID, "hard_delete_at", job.RunAt)
	return nil
}

// Restore cancels a pending deletion.
func (s *DeletionService) Restore(ctx context.Context, serieID string) error {
	series, err := s.getSeries(ctx, serieID)
	if err != nil {
		return err
	}
	if !series.IsSoftDeleted() {
		return domainerrors.InvalidStatef("series %s is not marked for deletion", serieID)
	}

	if series.PendingDeleteJobID != nil {
		err := s.broker.Remove(ctx, *series.PendingDeleteJobID)
		switch {
		case errors.Is(err, domainerrors.ErrNotFound):
			s.logger.Warn("pending hard delete job not found", "serie_id", serieID, "job_id", *series.PendingDeleteJobID)
		case err != nil:
			return err
		}
	}

	if err := s.store.ClearSoftDeleted(ctx, serieID); err != nil {
		return err
	}
	s.logger.Info("series restored", "serie_id", serieID)
	return nil
}

// Status reports whether a series is soft deleted and when its hard delete
// runs. An unknown series reports as not deleted.
func (s *DeletionService) Status(ctx context.Context, serieID string) (*DeletionStatus, error) {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		return &DeletionStatus{SerieID: serieID}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &DeletionStatus{
		SerieID:      serieID,
		IsDeleted:    series.IsSoftDeleted(),
		DeletedAt:    series.SoftDeletedAt,
		PendingJobID: series.PendingDeleteJobID,
	}
	if series.PendingDeleteJobID != nil {
		job, err := s.broker.Get(ctx, *series.PendingDeleteJobID)
		if err == nil && !job.State.IsTerminal() {
			runAt := job.RunAt
			status.ScheduledDeleteAt = &runAt
		}
	}
	return status, nil
}

// Handle runs a delete-serie job.
func (s *DeletionService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.DeleteSeriePayload](job)
	if err != nil {
		return nil, err
	}
	switch p.Type {
	case queue.JobSoftDelete:
		series, err := s.store.GetSeries(ctx, p.SerieID)
		if err != nil {
			return nil, notFoundUnrecoverable(err)
		}
		if series.IsSoftDeleted() {
			return nil, nil
		}
		return nil, s.softDelete(ctx, p.SerieID)
	case queue.JobHardDelete:
		return nil, s.HardDelete(ctx, p.SerieID)
	default:
		return nil, queue.Unrecoverable(domainerrors.Validationf("unknown delete job type %q", p.Type))
	}
}

// HardDelete removes a soft-deleted series for good: search document,
// stored objects, chapters, mirrors, then the series row. Series that are
// gone or were restored are left alone.
func (s *DeletionService) HardDelete(ctx context.Context, serieID string) error {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("series already gone, nothing to delete", "serie_id", serieID)
		return nil
	}
	if err != nil {
		return err
	}
	if !series.IsSoftDeleted() {
		s.logger.Info("series was restored, skipping hard delete", "serie_id", serieID)
		return nil
	}

	if err := s.indexer.Delete(serieID); err != nil {
		return err
	}
	removed, err := s.objects.DeletePrefix(ctx, storage.SeriePrefix(serieID))
	if err != nil {
		return fmt.Errorf("delete stored objects of %s: %w", serieID, err)
	}
	if err := s.store.DeleteChapters(ctx, serieID); err != nil {
		return err
	}
	if err := s.store.DeleteSerieSources(ctx, serieID); err != nil {
		return err
	}
	if err := s.store.DeleteSeries(ctx, serieID); err != nil {
		return err
	}

	s.logger.Info("series hard deleted", "serie_id", serieID, "objects_removed", removed)
	return nil
}

func (s *DeletionService) getSeries(ctx context.Context, serieID string) (*domain.Series, error) {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("series %s not found", serieID)
	}
	return series, err
}
