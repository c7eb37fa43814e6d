package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/storage"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// customCoverKey names custom covers in the object store.
const customCoverKey = "custom"

// CoverService processes mirror covers and user-supplied custom covers.
type CoverService struct {
	store    *sqlite.Store
	registry *source.Registry
	broker   *queue.Broker
	uploader *images.Uploader
	logger   *slog.Logger
}

// NewCoverService creates a new cover service.
func NewCoverService(store *sqlite.Store, registry *source.Registry, broker *queue.Broker, uploader *images.Uploader, logger *slog.Logger) *CoverService {
	return &CoverService{
		store:    store,
		registry: registry,
		broker:   broker,
		uploader: uploader,
		logger:   logger,
	}
}

// Handle runs a cover-update job.
func (s *CoverService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.CoverUpdatePayload](job)
	if err != nil {
		return nil, err
	}
	switch p.Type {
	case queue.JobCoverSource:
		return nil, s.processSourceCover(ctx, p.SerieSourceID)
	case queue.JobCoverCustom:
		return nil, s.processCustomCover(ctx, p.SerieID, p.ImageURL)
	default:
		return nil, queue.Unrecoverable(domainerrors.Validationf("unknown cover job type %q", p.Type))
	}
}

// processSourceCover stores the cover a mirror points at. Animated covers
// over the size limit are skipped.
func (s *CoverService) processSourceCover(ctx context.Context, serieSourceID string) error {
	mirror, err := s.store.GetSerieSource(ctx, serieSourceID)
	if err != nil {
		return notFoundUnrecoverable(err)
	}
	if mirror.CoverSourceURL == "" {
		s.logger.Debug("mirror has no cover", "serie_source_id", mirror.ID)
		return nil
	}

	stored, err := s.uploader.Upload(ctx, mirror.CoverSourceURL, s.sourceHeaders(ctx, mirror.SourceID), func(ext string) string {
		return storage.CoverKey(mirror.SeriesID, mirror.SourceID, ext)
	})
	if errors.Is(err, images.ErrTooLarge) {
		s.logger.Warn("cover too large, skipped", "serie_source_id", mirror.ID, "url", mirror.CoverSourceURL)
		return nil
	}
	if err != nil {
		if errors.Is(err, images.ErrPermanent) {
			return queue.Unrecoverable(err)
		}
		return err
	}

	if err := s.store.SetSerieSourceCover(ctx, mirror.ID, stored.URL); err != nil {
		return err
	}
	s.logger.Info("source cover stored", "serie_source_id", mirror.ID, "key", stored.Key)
	return nil
}

// processCustomCover stores a user-supplied cover. The series must have its
// cover locked, otherwise the indexer would never display it.
func (s *CoverService) processCustomCover(ctx context.Context, serieID, imageURL string) error {
	series, err := s.store.GetSeries(ctx, serieID)
	if err != nil {
		return notFoundUnrecoverable(err)
	}
	if !series.IsLocked(domain.LockCover) {
		return queue.Unrecoverable(domainerrors.InvalidStatef("series %s cover is not locked", serieID))
	}

	stored, err := s.uploader.Upload(ctx, imageURL, nil, func(ext string) string {
		return storage.CoverKey(serieID, customCoverKey, ext)
	})
	if err != nil {
		if errors.Is(err, images.ErrPermanent) {
			return queue.Unrecoverable(err)
		}
		return err
	}
	if err := s.store.SetCustomCover(ctx, serieID, stored.URL); err != nil {
		return err
	}

	if _, err := s.broker.Add(ctx, queue.Indexer, queue.JobIndexUpdate,
		queue.IndexerPayload{SerieID: serieID, Type: queue.JobIndexUpdate}, queue.JobOptions{}); err != nil {
		return err
	}
	s.logger.Info("custom cover stored", "serie_id", serieID, "key", stored.Key)
	return nil
}

// SetCustomCover locks the cover of a series and queues the upload of
// imageURL as its custom cover.
func (s *CoverService) SetCustomCover(ctx context.Context, serieID, imageURL string) (*domain.Job, error) {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("series %s not found", serieID)
	}
	if err != nil {
		return nil, err
	}

	if !series.IsLocked(domain.LockCover) {
		locked := append(slices.Clone(series.LockedFields), domain.LockCover)
		if err := s.store.SetLockedFields(ctx, serieID, locked); err != nil {
			return nil, err
		}
	}

	return s.broker.Add(ctx, queue.CoverUpdate, queue.JobCoverCustom, queue.CoverUpdatePayload{
		Type:     queue.JobCoverCustom,
		SerieID:  serieID,
		ImageURL: imageURL,
	}, queue.JobOptions{})
}

func (s *CoverService) sourceHeaders(ctx context.Context, sourceID string) http.Header {
	adapter, err := s.registry.Get(ctx, sourceID)
	if err != nil {
		return nil
	}
	return adapter.APIInfo().Headers
}
