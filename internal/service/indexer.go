package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// PolicyFunc returns the language policy currently in effect.
type PolicyFunc func() domain.LanguagePolicy

// IndexerService recomputes the display fields of series and keeps the
// search index in sync with the catalog.
type IndexerService struct {
	store  *sqlite.Store
	index  *search.Index
	policy PolicyFunc
	logger *slog.Logger
}

// NewIndexerService creates a new indexer service.
func NewIndexerService(store *sqlite.Store, index *search.Index, policy PolicyFunc, logger *slog.Logger) *IndexerService {
	return &IndexerService{
		store:  store,
		index:  index,
		policy: policy,
		logger: logger,
	}
}

// Handle runs an indexer job.
func (s *IndexerService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.IndexerPayload](job)
	if err != nil {
		return nil, err
	}
	switch p.Type {
	case queue.JobIndexUpdate:
		return nil, s.Update(ctx, p.SerieID)
	case queue.JobIndexDelete:
		return nil, s.Delete(p.SerieID)
	default:
		return nil, queue.Unrecoverable(domainerrors.Validationf("unknown indexer job type %q", p.Type))
	}
}

// Update recomputes the unlocked display fields of a series from its primary
// mirror and re-indexes it. A series that is gone or has no mirror left is
// removed from the index.
func (s *IndexerService) Update(ctx context.Context, serieID string) error {
	series, err := s.store.GetSeries(ctx, serieID)
	if errors.Is(err, store.ErrNotFound) {
		return s.Delete(serieID)
	}
	if err != nil {
		return err
	}
	mirrors, err := s.store.ListSerieSources(ctx, serieID)
	if err != nil {
		return err
	}
	if len(mirrors) == 0 {
		s.logger.Warn("series has no mirror, removing from index", "serie_id", serieID)
		return s.Delete(serieID)
	}

	display := Display(series, primaryMirror(mirrors), s.policy())
	if err := s.store.UpdateSeriesDisplay(ctx, serieID, display); err != nil {
		return err
	}
	if series, err = s.store.GetSeries(ctx, serieID); err != nil {
		return err
	}

	if err := s.index.Upsert(search.SeriesDocument(series, mirrors)); err != nil {
		return err
	}
	s.logger.Debug("series indexed", "serie_id", serieID, "title", series.Title, "mirrors", len(mirrors))
	return nil
}

// Delete removes a series from the index.
func (s *IndexerService) Delete(serieID string) error {
	if err := s.index.Delete(serieID); err != nil {
		return err
	}
	s.logger.Debug("series removed from index", "serie_id", serieID)
	return nil
}

// Reindex drops the index and rebuilds it from every live series.
func (s *IndexerService) Reindex(ctx context.Context) (int, error) {
	ids, err := s.store.SeriesIDs(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, err
	}

	docs := make([]*search.Document, 0, len(ids))
	for _, serieID := range ids {
		series, err := s.store.GetSeries(ctx, serieID)
		if err != nil {
			return 0, fmt.Errorf("load series %s: %w", serieID, err)
		}
		mirrors, err := s.store.ListSerieSources(ctx, serieID)
		if err != nil {
			return 0, fmt.Errorf("load mirrors of %s: %w", serieID, err)
		}
		if len(mirrors) == 0 {
			continue
		}
		docs = append(docs, search.SeriesDocument(series, mirrors))
	}
	if err := s.index.UpsertBatch(docs); err != nil {
		return 0, err
	}
	s.logger.Info("search index rebuilt", "series", len(docs))
	return len(docs), nil
}

// Search queries the index.
func (s *IndexerService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	return s.index.Search(ctx, params)
}

// Display resolves the display fields of a series: locked fields keep their
// value, the others follow the primary mirror. A locked cover shows the
// custom cover once one is stored.
func Display(series *domain.Series, primary *domain.SerieSource, policy domain.LanguagePolicy) sqlite.SeriesDisplay {
	d := sqlite.SeriesDisplay{
		Title:    series.Title,
		Synopsis: series.Synopsis,
		Cover:    series.Cover,
		Status:   series.Status,
		Type:     series.Type,
	}
	if !series.IsLocked(domain.LockTitle) {
		d.Title = primary.Title.Resolve(policy, domain.DefaultTitle)
	}
	if !series.IsLocked(domain.LockSynopsis) {
		d.Synopsis = optional(primary.Synopsis.Resolve(policy, ""))
	}
	if !series.IsLocked(domain.LockStatus) {
		d.Status = primary.Status
	}
	if !series.IsLocked(domain.LockType) {
		d.Type = primary.Type
	}
	switch {
	case !series.IsLocked(domain.LockCover):
		d.Cover = optional(primary.ProcessedCover())
	case series.CustomCover != nil:
		d.Cover = series.CustomCover
	}
	return d
}

// primaryMirror returns the mirror flagged primary, or the first one.
func primaryMirror(mirrors []*domain.SerieSource) *domain.SerieSource {
	for _, m := range mirrors {
		if m.IsPrimary {
			return m
		}
	}
	return mirrors[0]
}
