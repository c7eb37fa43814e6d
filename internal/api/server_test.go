package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/storage"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// stubSource serves series from memory and never has pages.
type stubSource struct {
	mu     sync.Mutex
	series map[string]*source.Serie
}

func (s *stubSource) Info() source.Information {
	return source.Information{
		ID:        "mangadex",
		Name:      "MangaDex",
		URL:       "https://mangadex.example",
		Version:   "1.0.0",
		Languages: []domain.Language{domain.LanguageEn},
	}
}

func (s *stubSource) APIInfo() source.APIInformation {
	return source.APIInformation{BaseURL: "https://mangadex.example", Timeout: time.Second}
}

func (s *stubSource) ParseURL(rawURL string) (string, bool) {
	const prefix = "https://mangadex.example/title/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, prefix), true
}

func (s *stubSource) SerieURL(externalID string) string {
	return "https://mangadex.example/title/" + externalID
}

func (s *stubSource) FetchPopular(context.Context, int) (source.Page[source.SearchItem], error) {
	return source.Page[source.SearchItem]{}, nil
}

func (s *stubSource) FetchLatest(context.Context, int) (source.Page[source.SearchItem], error) {
	return source.Page[source.SearchItem]{}, nil
}

func (s *stubSource) FetchSearch(context.Context, int, source.SearchFilter) (source.Page[source.SearchItem], error) {
	return source.Page[source.SearchItem]{}, nil
}

func (s *stubSource) FetchDetail(_ context.Context, externalID string) (*source.Serie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.series[externalID]
	if !ok {
		return nil, &source.FetchError{Source: "mangadex", URL: externalID, StatusCode: 404, Err: source.ErrNotFound}
	}
	return d, nil
}

func (s *stubSource) FetchChapters(context.Context, string) (*source.ChapterList, error) {
	return &source.ChapterList{Chapters: []source.Chapter{{
		ID:            "c1",
		Title:         domain.MultiLanguage{domain.LanguageEn: {"First"}},
		ChapterNumber: 1,
		Language:      domain.LanguageEn,
		DateUpload:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}}}, nil
}

func (s *stubSource) FetchChapterPages(context.Context, string, string) ([]source.PageDescriptor, error) {
	return nil, &source.FetchError{Source: "mangadex", StatusCode: 503, Err: source.ErrBlocked}
}

func (s *stubSource) add(externalID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[externalID] = &source.Serie{
		ID:     externalID,
		Title:  domain.MultiLanguage{domain.LanguageEn: {title}},
		Status: []domain.SerieStatus{domain.StatusOngoing},
		Type:   domain.TypeManga,
		Genres: []domain.Genre{domain.GenreAction},
	}
}

type testServer struct {
	*Server
	api      humatest.TestAPI
	ctx      context.Context
	source   *stubSource
	importer *service.ImportService
}

func setupTestServer(t *testing.T) *testServer {
	return setupTestServerWithOptions(t, Options{})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	log := logger.Discard()

	catalog, err := sqlite.Open(filepath.Join(dir, "catalog.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	jobs, err := store.NewInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Close() })
	broker, err := queue.NewBroker(ctx, queue.Options{Store: jobs, Logger: log})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Sources.PrimaryLanguage = string(domain.LanguageEn)
	cfg.Sources.FallbackLanguage = string(domain.LanguageEn)

	stub := &stubSource{series: make(map[string]*source.Serie)}
	registry := source.NewRegistry(func(context.Context, config.SourcesConfig) ([]source.Source, error) {
		return []source.Source{stub}, nil
	}, cfg.Sources, log)

	objects, err := storage.NewLocal(filepath.Join(dir, "objects"), "http://cdn.test", log)
	require.NoError(t, err)

	index, err := search.NewIndex(search.Options{DataPath: filepath.Join(dir, "search"), Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	uploader := images.NewUploader(
		images.NewDownloader(cfg.Images, "dokusho-test", log),
		images.NewProcessor(cfg.Images, log),
		objects, log)

	indexer := service.NewIndexerService(catalog, index, func() domain.LanguagePolicy { return cfg.LanguagePolicy() }, log)
	services := &Services{
		Import:   service.NewImportService(catalog, registry, broker, log),
		Cover:    service.NewCoverService(catalog, registry, broker, uploader, log),
		Indexer:  indexer,
		Deletion: service.NewDeletionService(catalog, broker, indexer, objects, cfg.GracePeriod(), log),
		Admin:    service.NewAdminService(catalog, broker, indexer, log),
		Sources:  service.NewSourceSyncService(catalog, registry, broker, log),
	}
	_, err = services.Sources.Sync(ctx)
	require.NoError(t, err)

	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}
	server := NewServer(catalog, broker, index, services, opts, log)

	return &testServer{
		Server:   server,
		api:      humatest.Wrap(t, server.API()),
		ctx:      ctx,
		source:   stub,
		importer: services.Import,
	}
}

// importSerie runs the serie-inserter job for externalID and returns the
// new series id.
func (ts *testServer) importSerie(t *testing.T, externalID, title string) string {
	t.Helper()
	ts.source.add(externalID, title)
	body, err := json.Marshal(queue.SerieInserterPayload{SourceID: "mangadex", SourceSerieID: externalID})
	require.NoError(t, err)
	out, err := ts.importer.Handle(ts.ctx, &domain.Job{ID: "test-job", Queue: queue.SerieInserter, Payload: body})
	require.NoError(t, err)
	return out.(*queue.SerieInserterResult).SerieID
}

// testEnvelope is the success envelope with typed data.
type testEnvelope[T any] struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func decodeData[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	require.True(t, env.Success)
	return env.Data
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) APIErrorEnvelope {
	t.Helper()
	var env APIErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	require.False(t, env.Success)
	return env
}
