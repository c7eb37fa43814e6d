package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/storage"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// ChapterResult is stored on completed chapter-data and page-retry jobs.
type ChapterResult struct {
	ChapterID string             `json:"chapter_id"`
	Status    domain.FetchStatus `json:"status"`
	Pages     int                `json:"pages"`
	Uploaded  int                `json:"uploaded"`
	Permanent int                `json:"permanent"`
}

// PageService mirrors chapter pages into the object store.
type PageService struct {
	store       *sqlite.Store
	registry    *source.Registry
	uploader    *images.Uploader
	objects     storage.Store
	concurrency int
	logger      *slog.Logger
}

// NewPageService creates a page service uploading concurrency pages of a
// chapter at a time.
func NewPageService(store *sqlite.Store, registry *source.Registry, uploader *images.Uploader, objects storage.Store, concurrency int, logger *slog.Logger) *PageService {
	if concurrency < 1 {
		concurrency = 2
	}
	return &PageService{
		store:       store,
		registry:    registry,
		uploader:    uploader,
		objects:     objects,
		concurrency: concurrency,
		logger:      logger,
	}
}

// HandleChapter runs a chapter-data job: the chapter's page list is fetched
// again and every page re-uploaded from scratch.
func (s *PageService) HandleChapter(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.ChapterDataPayload](job)
	if err != nil {
		return nil, err
	}
	return s.FetchChapter(ctx, p.ChapterID)
}

// FetchChapter downloads every page of a chapter. A chapter that ends up
// Failed is returned with an error so the job is retried.
func (s *PageService) FetchChapter(ctx context.Context, chapterID string) (*ChapterResult, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, notFoundUnrecoverable(err)
	}
	if err := s.store.SetChapterStatus(ctx, chapter.ID, domain.FetchInProgress); err != nil {
		return nil, err
	}

	adapter, descriptors, err := s.fetchPageList(ctx, chapter)
	if err != nil {
		if statusErr := s.store.SetChapterStatus(ctx, chapter.ID, domain.FetchFailed); statusErr != nil {
			s.logger.Warn("failed to mark chapter failed", "chapter_id", chapter.ID, "error", statusErr)
		}
		return nil, notFoundUnrecoverable(fmt.Errorf("fetch pages of chapter %s: %w", chapter.ID, err))
	}

	if len(descriptors) == 0 {
		if err := s.store.DisableChapter(ctx, chapter.ID); err != nil {
			return nil, err
		}
		if err := s.store.SetChapterStatus(ctx, chapter.ID, domain.FetchSuccess); err != nil {
			return nil, err
		}
		s.logger.Info("chapter has no pages, disabled", "chapter_id", chapter.ID)
		return &ChapterResult{ChapterID: chapter.ID, Status: domain.FetchSuccess}, nil
	}

	if err := s.store.DeletePages(ctx, chapter.ID); err != nil {
		return nil, err
	}
	if _, err := s.objects.DeletePrefix(ctx, storage.ChapterPrefix(chapter.SeriesID, chapter.ID)); err != nil {
		return nil, fmt.Errorf("clear stored pages of chapter %s: %w", chapter.ID, err)
	}

	headers := adapter.APIInfo().Headers
	pages := make([]*domain.ChapterPage, len(descriptors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range descriptors {
		pages[i] = &domain.ChapterPage{
			ChapterID: chapter.ID,
			Index:     d.Index,
			SourceURL: optional(d.URL),
		}
		page := pages[i]
		g.Go(func() error {
			s.uploadPage(gctx, chapter, page, headers)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.store.InsertPages(ctx, pages); err != nil {
		return nil, err
	}
	return s.settle(ctx, chapter.ID, false)
}

// HandleRetry runs a page-retry job.
func (s *PageService) HandleRetry(ctx context.Context, job *domain.Job) (any, error) {
	p, err := queue.Decode[queue.PageRetryPayload](job)
	if err != nil {
		return nil, err
	}
	return s.RetryChapter(ctx, p.ChapterID)
}

// RetryChapter uploads the retryable pages of a chapter again. Pages that
// already succeeded or were given up on are left alone.
func (s *PageService) RetryChapter(ctx context.Context, chapterID string) (*ChapterResult, error) {
	chapter, err := s.store.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, notFoundUnrecoverable(err)
	}
	pages, err := s.store.RetryablePages(ctx, chapter.ID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return &ChapterResult{ChapterID: chapter.ID, Status: chapter.PageFetchStatus}, nil
	}

	headers := s.headers(ctx, chapter.SourceID)
	var (
		mu      sync.Mutex
		updates []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, page := range pages {
		g.Go(func() error {
			s.uploadPage(gctx, chapter, page, headers)
			var err error
			switch {
			case page.PermanentlyFailed:
				err = s.store.MarkPagePermanentlyFailed(ctx, page.ID)
			case page.URL != nil:
				err = s.store.MarkPageUploaded(ctx, page)
			}
			if err != nil {
				mu.Lock()
				updates = append(updates, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(updates...); err != nil {
		return nil, err
	}
	return s.settle(ctx, chapter.ID, true)
}

// uploadPage stores one page and records the outcome on it: a URL on
// success, PermanentlyFailed when retrying cannot help, nothing otherwise.
func (s *PageService) uploadPage(ctx context.Context, chapter *domain.Chapter, page *domain.ChapterPage, headers http.Header) {
	if page.SourceURL == nil {
		page.PermanentlyFailed = true
		return
	}
	stored, err := s.uploader.Upload(ctx, *page.SourceURL, headers, func(ext string) string {
		return storage.PageKey(chapter.SeriesID, chapter.ID, page.Index, ext)
	})
	if err != nil {
		page.PermanentlyFailed = errors.Is(err, images.ErrPermanent)
		s.logger.Warn("page upload failed",
			"chapter_id", chapter.ID,
			"index", page.Index,
			"permanent", page.PermanentlyFailed,
			"error", err)
		return
	}
	quality := stored.Quality
	page.URL = &stored.URL
	page.Quality = &quality
	page.QualityIssues = stored.Issues
	page.Metadata = stored.Metadata
}

// settle recounts the pages of a chapter and persists the classification.
func (s *PageService) settle(ctx context.Context, chapterID string, retried bool) (*ChapterResult, error) {
	counts, err := s.store.CountPages(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	status := counts.Status()
	if retried {
		if _, err := s.store.SetRetriedChapterStatus(ctx, chapterID, status); err != nil {
			return nil, err
		}
	} else if err := s.store.SetChapterStatus(ctx, chapterID, status); err != nil {
		return nil, err
	}

	result := &ChapterResult{
		ChapterID: chapterID,
		Status:    status,
		Pages:     counts.Success + counts.Retryable + counts.Permanent,
		Uploaded:  counts.Success,
		Permanent: counts.Permanent,
	}
	s.logger.Info("chapter pages settled",
		"chapter_id", chapterID,
		"status", status,
		"uploaded", counts.Success,
		"retryable", counts.Retryable,
		"permanent", counts.Permanent)

	if status == domain.FetchFailed {
		return result, fmt.Errorf("chapter %s: no page could be uploaded", chapterID)
	}
	return result, nil
}

func (s *PageService) fetchPageList(ctx context.Context, chapter *domain.Chapter) (source.Source, []source.PageDescriptor, error) {
	adapter, err := s.registry.Get(ctx, chapter.SourceID)
	if err != nil {
		return nil, nil, err
	}
	mirrors, err := s.store.ListSerieSources(ctx, chapter.SeriesID)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range mirrors {
		if m.SourceID == chapter.SourceID {
			descriptors, err := adapter.FetchChapterPages(ctx, m.ExternalID, chapter.ExternalID)
			return adapter, descriptors, err
		}
	}
	return nil, nil, fmt.Errorf("%w: series %s has no %s mirror", source.ErrNotFound, chapter.SeriesID, chapter.SourceID)
}

// headers returns the request headers an adapter needs for its images, or
// nil when the adapter is gone.
func (s *PageService) headers(ctx context.Context, sourceID string) http.Header {
	adapter, err := s.registry.Get(ctx, sourceID)
	if err != nil {
		s.logger.Debug("source unavailable, retrying without headers", "source_id", sourceID, "error", err)
		return nil
	}
	return adapter.APIInfo().Headers
}

// notFoundUnrecoverable stops retries of jobs whose target is gone.
func notFoundUnrecoverable(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, source.ErrNotFound) {
		return queue.Unrecoverable(err)
	}
	return err
}
