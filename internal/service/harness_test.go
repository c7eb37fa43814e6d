package service

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/storage"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

var testNow = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

var errTransient = &source.FetchError{Source: "mangadex", URL: "detail", StatusCode: 502, Err: source.ErrBlocked}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSource is an in-memory catalog.
type fakeSource struct {
	id string

	mu          sync.Mutex
	details     map[string]*source.Serie
	chapters    map[string]*source.ChapterList
	pages       map[string][]source.PageDescriptor
	latest      [][]string
	latestErrAt int
	latestCalls int
	detailErr   error
}

func newFakeSource(id string) *fakeSource {
	return &fakeSource{
		id:       id,
		details:  make(map[string]*source.Serie),
		chapters: make(map[string]*source.ChapterList),
		pages:    make(map[string][]source.PageDescriptor),
	}
}

func (f *fakeSource) Info() source.Information {
	return source.Information{
		ID:        f.id,
		Name:      strings.ToUpper(f.id),
		URL:       "https://" + f.id + ".example",
		Version:   "1.0.0",
		Languages: []domain.Language{domain.LanguageEn},
	}
}

func (f *fakeSource) APIInfo() source.APIInformation {
	return source.APIInformation{
		BaseURL:           "https://" + f.id + ".example",
		Headers:           http.Header{"Referer": []string{"https://" + f.id + ".example/"}},
		Timeout:           10 * time.Second,
		RateLimitMax:      2,
		RateLimitDuration: time.Second,
	}
}

func (f *fakeSource) ParseURL(rawURL string) (string, bool) {
	prefix := "https://" + f.id + ".example/series/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, prefix), true
}

func (f *fakeSource) SerieURL(externalID string) string {
	return "https://" + f.id + ".example/series/" + externalID
}

func (f *fakeSource) FetchPopular(context.Context, int) (source.Page[source.SearchItem], error) {
	return source.Page[source.SearchItem]{}, nil
}

func (f *fakeSource) FetchLatest(_ context.Context, page int) (source.Page[source.SearchItem], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	if f.latestErrAt == page {
		return source.Page[source.SearchItem]{}, &source.FetchError{Source: f.id, URL: "latest", StatusCode: 502, Err: source.ErrBlocked}
	}
	if page > len(f.latest) {
		return source.Page[source.SearchItem]{}, nil
	}
	items := make([]source.SearchItem, 0, len(f.latest[page-1]))
	for _, externalID := range f.latest[page-1] {
		items = append(items, source.SearchItem{ID: externalID})
	}
	return source.Page[source.SearchItem]{Items: items, HasNextPage: page < len(f.latest)}, nil
}

func (f *fakeSource) FetchSearch(context.Context, int, source.SearchFilter) (source.Page[source.SearchItem], error) {
	return source.Page[source.SearchItem]{}, nil
}

func (f *fakeSource) FetchDetail(_ context.Context, externalID string) (*source.Serie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	d, ok := f.details[externalID]
	if !ok {
		return nil, &source.FetchError{Source: f.id, URL: externalID, StatusCode: 404, Err: source.ErrNotFound}
	}
	return d, nil
}

func (f *fakeSource) FetchChapters(_ context.Context, externalID string) (*source.ChapterList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if list, ok := f.chapters[externalID]; ok {
		return list, nil
	}
	return &source.ChapterList{}, nil
}

func (f *fakeSource) FetchChapterPages(_ context.Context, _, chapterID string) ([]source.PageDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages, ok := f.pages[chapterID]
	if !ok {
		return nil, &source.FetchError{Source: f.id, URL: chapterID, StatusCode: 503, Err: source.ErrBlocked}
	}
	return pages, nil
}

func (f *fakeSource) addSerie(externalID, title, cover string, chapters ...source.Chapter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[externalID] = &source.Serie{
		ID:       externalID,
		Title:    domain.MultiLanguage{domain.LanguageEn: {title}},
		Synopsis: domain.MultiLanguage{domain.LanguageEn: {"About " + title + "."}},
		Cover:    cover,
		Status:   []domain.SerieStatus{domain.StatusOngoing},
		Type:     domain.TypeManga,
		Genres:   []domain.Genre{domain.GenreAction},
		Authors:  []string{"Author of " + title},
	}
	f.chapters[externalID] = &source.ChapterList{Chapters: chapters}
}

func (f *fakeSource) setPages(chapterID string, urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := make([]source.PageDescriptor, len(urls))
	for i, u := range urls {
		pages[i] = source.PageDescriptor{Index: i, URL: u}
	}
	f.pages[chapterID] = pages
}

func testChapter(externalID string, number float64, day int) source.Chapter {
	return source.Chapter{
		ID:            externalID,
		Title:         domain.MultiLanguage{domain.LanguageEn: {"Chapter " + externalID}},
		ChapterNumber: number,
		Language:      domain.LanguageEn,
		DateUpload:    time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC),
		Groups:        []source.Group{{ID: "g1", Name: "Group One"}},
	}
}

// imageServer serves a PNG under /img/, 404 under /gone/ and 500 under
// /flaky/ until healed.
type imageServer struct {
	*httptest.Server
	mu     sync.Mutex
	healed bool
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 3), uint8(y * 2), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	body := buf.Bytes()

	s := &imageServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		healed := s.healed
		s.mu.Unlock()
		switch {
		case strings.HasPrefix(r.URL.Path, "/img/"), strings.HasPrefix(r.URL.Path, "/flaky/") && healed:
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		case strings.HasPrefix(r.URL.Path, "/gone/"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healed = true
}

type harness struct {
	ctx      context.Context
	clock    *testClock
	store    *sqlite.Store
	broker   *queue.Broker
	registry *source.Registry
	objects  *storage.Local
	index    *search.Index
	uploader *images.Uploader
	source   *fakeSource
	images   *imageServer
	cfg      config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	clock := &testClock{now: testNow}

	catalog, err := sqlite.Open(filepath.Join(dir, "catalog.db"), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	catalog.SetClock(clock.Now)

	jobs, err := store.NewInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Close() })
	broker, err := queue.NewBroker(ctx, queue.Options{Store: jobs, Logger: logger.Discard(), Now: clock.Now})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Sources.PrimaryLanguage = string(domain.LanguageEn)
	cfg.Sources.FallbackLanguage = string(domain.LanguageEn)
	cfg.Images.DownloadAttempts = 1

	fake := newFakeSource("mangadex")
	registry := source.NewRegistry(func(context.Context, config.SourcesConfig) ([]source.Source, error) {
		return []source.Source{fake}, nil
	}, cfg.Sources, logger.Discard())

	objects, err := storage.NewLocal(filepath.Join(dir, "objects"), "http://cdn.test", logger.Discard())
	require.NoError(t, err)

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	uploader := images.NewUploader(
		images.NewDownloader(cfg.Images, "dokusho-test", logger.Discard()),
		images.NewProcessor(cfg.Images, logger.Discard()),
		objects, logger.Discard())

	return &harness{
		ctx:      ctx,
		clock:    clock,
		store:    catalog,
		broker:   broker,
		registry: registry,
		objects:  objects,
		index:    index,
		uploader: uploader,
		source:   fake,
		images:   newImageServer(t),
		cfg:      cfg,
	}
}

func (h *harness) importer() *ImportService {
	return NewImportService(h.store, h.registry, h.broker, logger.Discard())
}

func (h *harness) pages() *PageService {
	return NewPageService(h.store, h.registry, h.uploader, h.objects, 2, logger.Discard())
}

func (h *harness) indexer() *IndexerService {
	return NewIndexerService(h.store, h.index, func() domain.LanguagePolicy { return h.cfg.LanguagePolicy() }, logger.Discard())
}

func (h *harness) covers() *CoverService {
	return NewCoverService(h.store, h.registry, h.broker, h.uploader, logger.Discard())
}

func (h *harness) deletion() *DeletionService {
	d := NewDeletionService(h.store, h.broker, h.indexer(), h.objects, 7*24*time.Hour, logger.Discard())
	d.now = h.clock.Now
	return d
}

func (h *harness) updates() *UpdateService {
	u := NewUpdateService(h.store, h.registry, h.broker, h.cfg.Scheduler, logger.Discard())
	u.now = h.clock.Now
	return u
}

func (h *harness) admin() *AdminService {
	return NewAdminService(h.store, h.broker, h.indexer(), logger.Discard())
}

// syncSources writes the registry rows the catalog's foreign keys need.
func (h *harness) syncSources(t *testing.T) {
	t.Helper()
	_, err := NewSourceSyncService(h.store, h.registry, h.broker, logger.Discard()).Sync(h.ctx)
	require.NoError(t, err)
}

// importSerie runs a serie-inserter job for externalID directly.
func (h *harness) importSerie(t *testing.T, externalID string) *queue.SerieInserterResult {
	t.Helper()
	out, err := h.importer().Handle(h.ctx, jobFor(t, queue.SerieInserter, queue.SerieInserterPayload{
		SourceID:      h.source.id,
		SourceSerieID: externalID,
	}))
	require.NoError(t, err)
	return out.(*queue.SerieInserterResult)
}

func (h *harness) jobs(t *testing.T, name string, states ...domain.JobState) []*domain.Job {
	t.Helper()
	jobs, err := h.broker.List(h.ctx, name, states, 0, 1000)
	require.NoError(t, err)
	return jobs
}

func jobFor(t *testing.T, queueName string, payload any) *domain.Job {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.Job{ID: "test-job", Queue: queueName, Payload: body}
}

func decodePayload[T any](t *testing.T, job *domain.Job) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(job.Payload, &out))
	return out
}
