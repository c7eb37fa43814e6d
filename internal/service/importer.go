package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// ImportRequest is a queued import.
type ImportRequest struct {
	SourceID   string      `json:"source_id"`
	ExternalID string      `json:"external_id"`
	Job        *domain.Job `json:"job"`
}

// ImportService turns catalog entries into series: it queues imports and
// runs the serie-inserter jobs.
type ImportService struct {
	store    *sqlite.Store
	registry *source.Registry
	broker   *queue.Broker
	logger   *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(store *sqlite.Store, registry *source.Registry, broker *queue.Broker, logger *slog.Logger) *ImportService {
	return &ImportService{
		store:    store,
		registry: registry,
		broker:   broker,
		logger:   logger,
	}
}

// Import queues the import of one catalog entry. An entry already mirrored
// by a series returns an AlreadyImported error carrying that series id.
func (s *ImportService) Import(ctx context.Context, sourceID, externalID string) (*ImportRequest, error) {
	if _, err := s.registry.Get(ctx, sourceID); err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return nil, domainerrors.NotFoundf("source %q is not available", sourceID)
		}
		return nil, domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "load source %q", sourceID)
	}

	mirror, err := s.store.FindSerieSource(ctx, sourceID, externalID)
	switch {
	case err == nil:
		return nil, domainerrors.AlreadyImported(mirror.SeriesID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	job, err := s.broker.Add(ctx, queue.SerieInserter, queue.JobInsert,
		queue.SerieInserterPayload{SourceID: sourceID, SourceSerieID: externalID},
		queue.JobOptions{JobID: queue.SerieInserterJobID(sourceID, externalID)})
	if err != nil {
		return nil, err
	}

	s.logger.Info("import queued", "source_id", sourceID, "external_id", externalID, "job_id", job.ID)
	return &ImportRequest{SourceID: sourceID, ExternalID: externalID, Job: job}, nil
}

// ImportURL resolves a public serie URL and queues its import.
func (s *ImportService) ImportURL(ctx context.Context, rawURL string) (*ImportRequest, error) {
	parsed, err := s.ParseURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, parsed.SourceID, parsed.SerieID)
}

// ParseURL finds the source and catalog id of a public serie URL.
func (s *ImportService) ParseURL(ctx context.Context, rawURL string) (source.ParsedURL, error) {
	parsed, err := s.registry.ParseSerieURL(ctx, rawURL)
	switch {
	case err == nil:
		return parsed, nil
	case errors.Is(err, source.ErrNotFound):
		return parsed, domainerrors.Validation("no enabled source recognizes this URL")
	default:
		return parsed, domainerrors.Wrapf(err, domainerrors.CodeUnavailable, "load sources")
	}
}

// Handle runs a serie-inserter job: fetch the entry, persist it and queue
// the follow-up work as a flow whose parent re-indexes the series once
// every chapter and the cover are done.
func (s *ImportService) Handle(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.SerieInserterPayload](job)
	if err != nil {
		return nil, err
	}

	result, err := s.insert(ctx, p)
	if err != nil {
		if recErr := s.store.RecordCheckFailure(ctx, p.SourceID, p.SourceSerieID); recErr != nil {
			s.logger.Warn("failed to record check failure", "source_id", p.SourceID, "external_id", p.SourceSerieID, "error", recErr)
		}
		if errors.Is(err, source.ErrNotFound) {
			return nil, queue.Unrecoverable(err)
		}
		return nil, err
	}

	if err := s.store.RecordCheckSuccess(ctx, p.SourceID, p.SourceSerieID); err != nil {
		s.logger.Warn("failed to record check success", "source_id", p.SourceID, "external_id", p.SourceSerieID, "error", err)
	}
	return result, nil
}

func (s *ImportService) insert(ctx context.Context, p *queue.SerieInserterPayload) (*queue.SerieInserterResult, error) {
	adapter, err := s.registry.Get(ctx, p.SourceID)
	if err != nil {
		return nil, err
	}

	var (
		detail   *source.Serie
		chapters *source.ChapterList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = adapter.FetchDetail(gctx, p.SourceSerieID)
		return err
	})
	g.Go(func() error {
		var err error
		chapters, err = adapter.FetchChapters(gctx, p.SourceSerieID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", p.SourceID, p.SourceSerieID, err)
	}

	policy := s.registry.Config().LanguagePolicy()
	outcome, err := s.store.ImportSerie(ctx, serieImport(p.SourceID, p.SourceSerieID, detail, chapters, policy))
	if err != nil {
		return nil, err
	}

	children := make([]queue.FlowJob, 0, len(outcome.ChangedChapterIDs)+1)
	children = append(children, queue.FlowJob{
		Queue: queue.CoverUpdate,
		Name:  queue.JobCoverSource,
		Payload: queue.CoverUpdatePayload{
			Type:          queue.JobCoverSource,
			SerieSourceID: outcome.SerieSourceID,
		},
	})
	for _, chapterID := range outcome.ChangedChapterIDs {
		children = append(children, queue.FlowJob{
			Queue: queue.ChapterData,
			Name:  queue.JobChapterUpdate,
			Payload: queue.ChapterDataPayload{
				SerieID:   outcome.SeriesID,
				SourceID:  p.SourceID,
				ChapterID: chapterID,
				Type:      queue.JobChapterUpdate,
			},
		})
	}

	flow, err := s.broker.AddFlow(ctx, queue.FlowSpec{
		Parent: queue.FlowJob{
			Queue:   queue.Indexer,
			Name:    queue.JobIndexUpdate,
			Payload: queue.IndexerPayload{SerieID: outcome.SeriesID, Type: queue.JobIndexUpdate},
		},
		Children: children,
	})
	if err != nil {
		return nil, fmt.Errorf("queue follow-up jobs: %w", err)
	}

	s.logger.Info("serie imported",
		"serie_id", outcome.SeriesID,
		"source_id", p.SourceID,
		"external_id", p.SourceSerieID,
		"created", outcome.Created,
		"new_chapters", outcome.NewChapters,
		"removed_chapters", outcome.Removed,
		"chapters_queued", len(outcome.ChangedChapterIDs),
		"index_job_id", flow.Parent.ID)

	return &queue.SerieInserterResult{
		SerieID:        outcome.SeriesID,
		ChaptersQueued: len(outcome.ChangedChapterIDs),
	}, nil
}

// serieImport converts fetched catalog records into the store's import
// shape. Chapter titles resolve to a single display string.
func serieImport(sourceID, externalID string, detail *source.Serie, list *source.ChapterList, policy domain.LanguagePolicy) *sqlite.SerieImport {
	in := &sqlite.SerieImport{
		SourceID:        sourceID,
		ExternalID:      externalID,
		Title:           detail.Title,
		Synopsis:        detail.Synopsis,
		AlternateTitles: detail.AlternateTitles,
		CoverSourceURL:  detail.Cover,
		ExternalURL:     optional(detail.ExternalURL),
		Status:          detail.Status,
		Type:            detail.Type,
		Genres:          detail.Genres,
		Authors:         detail.Authors,
		Artists:         detail.Artists,
		Policy:          policy,
	}
	if list == nil {
		return in
	}

	in.Chapters = make([]sqlite.ChapterImport, 0, len(list.Chapters))
	for _, c := range list.Chapters {
		groups := make([]domain.ScanlationGroup, 0, len(c.Groups))
		for _, g := range c.Groups {
			groups = append(groups, domain.ScanlationGroup{
				SourceID:   sourceID,
				ExternalID: g.ID,
				Name:       g.Name,
				URL:        optional(g.URL),
			})
		}
		in.Chapters = append(in.Chapters, sqlite.ChapterImport{
			ExternalID:    c.ID,
			Title:         c.Title.Resolve(policy, ""),
			ChapterNumber: c.ChapterNumber,
			VolumeNumber:  c.VolumeNumber,
			VolumeName:    c.VolumeName,
			Language:      c.Language,
			DateUpload:    c.DateUpload,
			ExternalURL:   optional(c.ExternalURL),
			Groups:        groups,
		})
	}
	return in
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
