package suwayomi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/ratelimit"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

const catalogID = "2499283573021220255"

const mangaJSON = `{
	"id": 42,
	"title": "Solo Leveling",
	"url": "/manga/solo-leveling/",
	"realUrl": "https://mangasite.example/manga/solo-leveling/",
	"thumbnailUrl": "/api/v1/manga/42/thumbnail",
	"author": "Chugong",
	"artist": null,
	"description": "Hunters & gates",
	"status": "PUBLISHING_FINISHED",
	"genre": ["Action", "Slice of Life", "Manhwa", "Webtoon"]
}`

type gqlCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// fakeServer answers by operation name.
type fakeServer struct {
	mu        sync.Mutex
	calls     []gqlCall
	responses map[string]string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/graphql" {
		http.NotFound(w, r)
		return
	}
	var call gqlCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	for op, body := range f.responses {
		if strings.Contains(call.Query, op+"(") || strings.Contains(call.Query, op+" {") {
			w.Write([]byte(body))
			return
		}
	}
	w.Write([]byte(`{"errors": [{"message": "unexpected operation"}]}`))
}

func (f *fakeServer) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		q := strings.TrimSpace(c.Query)
		fields := strings.Fields(q)
		out = append(out, strings.TrimSuffix(strings.SplitN(fields[1], "(", 2)[0], "{"))
	}
	return out
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	fc := fetch.New(config.SourcesConfig{}, ratelimit.New(1000, 1000), logger.Discard())
	return NewClient(fc, server.URL)
}

func newTestAdapter(t *testing.T, f *fakeServer) *Adapter {
	t.Helper()
	client := newTestClient(t, f)
	a := NewAdapter(client, CatalogInfo{ID: catalogID, Name: "MangaSite", Lang: "en", IconURL: "/api/v1/extension/icon/x.png", SupportsLatest: true})
	client.fetch.Configure(a.info.ID, source.APIInformation{RateLimitMax: 1000, RateLimitDuration: time.Second})
	return a
}

func TestDiscover(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"Sources": `{"data": {"sources": {"nodes": [
			{"id": "0", "name": "Local source", "lang": "localsourcelang", "iconUrl": "", "supportsLatest": false, "isNsfw": false},
			{"id": "1", "name": "MangaDex", "lang": "en", "iconUrl": "", "supportsLatest": true, "isNsfw": true},
			{"id": "2", "name": "Lecture FR", "lang": "fr", "iconUrl": "", "supportsLatest": true, "isNsfw": false},
			{"id": "3", "name": "Asura", "lang": "en", "iconUrl": "/icon.png", "supportsLatest": true, "isNsfw": false},
			{"id": "4", "name": "Disabled", "lang": "en", "iconUrl": "", "supportsLatest": true, "isNsfw": false}
		]}}}`,
	}}
	client := newTestClient(t, f)
	native := []source.Source{stubNative{name: "Mangadex"}}
	cfg := config.SourcesConfig{Languages: []string{"En"}, SuwayomiDisabled: []string{"4"}}

	got, err := Discover(context.Background(), client, cfg, native, logger.Discard())
	require.NoError(t, err)
	require.Len(t, got, 1)

	info := got[0].Info()
	assert.Equal(t, "suwayomi-3", info.ID)
	assert.Equal(t, "Asura (Suwayomi)", info.Name)
	assert.Equal(t, client.BaseURL()+"/icon.png", info.Icon)
	assert.Equal(t, []domain.Language{domain.LanguageEn}, info.Languages)
}

func TestDiscover_GraphQLError(t *testing.T) {
	client := newTestClient(t, &fakeServer{})

	_, err := Discover(context.Background(), client, config.SourcesConfig{}, nil, logger.Discard())
	assert.ErrorIs(t, err, ErrGraphQL)
}

func TestClient_SchemaViolation(t *testing.T) {
	client := newTestClient(t, &fakeServer{responses: map[string]string{
		"Sources": `{"data": {"sources": {"nodes": [{"id": 3, "name": "Asura"}]}}}`,
	}})

	_, err := client.Catalogs(context.Background())
	assert.ErrorIs(t, err, source.ErrSchemaViolation)
}

func TestList(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"fetchSourceManga": `{"data": {"fetchSourceManga": {"hasNextPage": true, "mangas": [` + mangaJSON + `]}}}`,
	}}
	a := newTestAdapter(t, f)

	page, err := a.FetchSearch(context.Background(), 0, source.SearchFilter{Query: "solo"})
	require.NoError(t, err)
	assert.True(t, page.HasNextPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, catalogID+":/manga/solo-leveling/", page.Items[0].ID)
	assert.Equal(t, a.client.BaseURL()+"/api/v1/manga/42/thumbnail", page.Items[0].Cover)

	input := f.calls[0].Variables["input"].(map[string]any)
	assert.Equal(t, "SEARCH", input["type"])
	assert.Equal(t, "solo", input["query"])
	assert.Equal(t, catalogID, input["source"])
	assert.EqualValues(t, 1, input["page"])
}

func TestFetchLatest_FallsBackToPopular(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"fetchSourceManga": `{"data": {"fetchSourceManga": {"hasNextPage": false, "mangas": []}}}`,
	}}
	a := newTestAdapter(t, f)
	a.catalog.SupportsLatest = false

	_, err := a.FetchLatest(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "POPULAR", f.calls[0].Variables["input"].(map[string]any)["type"])
}

func TestFetchDetail_ResolvesByURL(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"MangaByUrl": `{"data": {"mangas": {"nodes": [{"id": 42, "title": "Solo Leveling", "url": "/manga/solo-leveling/"}]}}}`,
		"fetchManga": `{"data": {"fetchManga": {"manga": ` + mangaJSON + `}}}`,
	}}
	a := newTestAdapter(t, f)
	id := catalogID + ":/manga/solo-leveling/"

	serie, err := a.FetchDetail(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Solo Leveling"}, serie.Title[domain.LanguageEn])
	assert.Equal(t, []string{"Hunters & gates"}, serie.Synopsis[domain.LanguageEn])
	assert.Equal(t, []domain.SerieStatus{domain.StatusCompleted}, serie.Status)
	assert.Equal(t, domain.TypeManhwa, serie.Type)
	assert.Equal(t, []domain.Genre{domain.GenreAction, domain.GenreSliceOfLife, domain.GenreUnknown, domain.GenreWebComic}, serie.Genres)
	assert.Equal(t, []string{"Chugong"}, serie.Authors)
	assert.Empty(t, serie.Artists)
	assert.Equal(t, "https://mangasite.example/manga/solo-leveling/", serie.ExternalURL)

	// The real URL taught the adapter its host.
	assert.Equal(t, "https://mangasite.example", a.Info().URL)
	parsed, ok := a.ParseURL("https://mangasite.example/manga/solo-leveling/")
	assert.True(t, ok)
	assert.Equal(t, id, parsed)
	assert.Equal(t, "https://mangasite.example/manga/solo-leveling/", a.SerieURL(id))

	// Cached: the second call skips the lookup.
	_, err = a.FetchDetail(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"MangaByUrl", "FetchManga", "FetchManga"}, f.operations())
}

func TestResolve_SearchFallback(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"MangaByUrl":       `{"data": {"mangas": {"nodes": []}}}`,
		"fetchSourceManga": `{"data": {"fetchSourceManga": {"hasNextPage": false, "mangas": [` + mangaJSON + `]}}}`,
	}}
	a := newTestAdapter(t, f)

	id, err := a.resolve(context.Background(), catalogID+":/manga/solo-leveling/")
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, "solo leveling", f.calls[1].Variables["input"].(map[string]any)["query"])

	_, err = a.resolve(context.Background(), catalogID+":/manga/other/")
	assert.ErrorIs(t, err, source.ErrNotFound)

	_, err = a.resolve(context.Background(), "999:/manga/solo-leveling/")
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestFetchChapters(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"fetchChapters": `{"data": {"fetchChapters": {"chapters": [
			{"id": 7, "name": "Chapter 3", "chapterNumber": 3, "scanlator": "Team A", "uploadDate": "1735898400000", "url": "/chapter/3", "realUrl": null},
			{"id": 6, "name": "Episode 1", "chapterNumber": -1, "scanlator": null, "uploadDate": 0, "url": "/chapter/1", "realUrl": "https://mangasite.example/chapter/1"}
		]}}}`,
	}}
	a := newTestAdapter(t, f)
	a.remember("/manga/solo-leveling/", 42)

	list, err := a.FetchChapters(context.Background(), catalogID+":/manga/solo-leveling/")
	require.NoError(t, err)
	require.Len(t, list.Chapters, 2)
	assert.Equal(t, []float64{2}, list.MissingChapters)
	assert.EqualValues(t, 42, f.calls[0].Variables["mangaId"])

	c3 := list.Chapters[0]
	assert.Equal(t, "7", c3.ID)
	assert.Equal(t, 3.0, c3.ChapterNumber)
	assert.Equal(t, time.UnixMilli(1735898400000).UTC(), c3.DateUpload)
	assert.Equal(t, []source.Group{{ID: "Team A", Name: "Team A"}}, c3.Groups)
	assert.Equal(t, "https://unknown.local/chapter/3", c3.ExternalURL)

	c1 := list.Chapters[1]
	assert.Equal(t, 1.0, c1.ChapterNumber)
	assert.Empty(t, c1.Groups)
	assert.Equal(t, "https://mangasite.example/chapter/1", c1.ExternalURL)
	assert.Equal(t, source.UnknownUploadDate, c1.DateUpload)
}

func TestToChapter_UploadDateIsStable(t *testing.T) {
	a := newTestAdapter(t, &fakeServer{})

	tests := []struct {
		name       string
		uploadDate json.Number
		want       time.Time
	}{
		{"epoch milliseconds", "1735898400000", time.UnixMilli(1735898400000).UTC()},
		{"zero", "0", time.Unix(0, 0).UTC()},
		{"missing", "", source.UnknownUploadDate},
		{"garbage", "yesterday", source.UnknownUploadDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chapter{ID: 6, Name: "Chapter 1", ChapterNumber: 1, UploadDate: tt.uploadDate, URL: "/chapter/1"}

			first := a.toChapter(c)
			time.Sleep(2 * time.Millisecond)
			second := a.toChapter(c)

			assert.Equal(t, tt.want, first.DateUpload)
			assert.True(t, first.DateUpload.Equal(second.DateUpload))
		})
	}
}

func TestFetchChapterPages(t *testing.T) {
	f := &fakeServer{responses: map[string]string{
		"fetchChapterPages": `{"data": {"fetchChapterPages": {"pages": ["/api/v1/manga/42/chapter/7/page/0", "/api/v1/manga/42/chapter/7/page/1"]}}}`,
	}}
	a := newTestAdapter(t, f)

	pages, err := a.FetchChapterPages(context.Background(), "ignored", "7")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[1].Index)
	assert.Equal(t, a.client.BaseURL()+"/api/v1/manga/42/chapter/7/page/1", pages[1].URL)

	_, err = a.FetchChapterPages(context.Background(), "ignored", "abc")
	assert.ErrorIs(t, err, source.ErrParse)
}

func TestVocabulary(t *testing.T) {
	assert.Equal(t, domain.LanguageZhHk, catalogLanguage("ZH-HANT"))
	assert.Equal(t, domain.LanguageEn, catalogLanguage("all"))
	assert.Equal(t, domain.GenreSciFi, genreOf("Sci-Fi"))
	assert.Equal(t, domain.GenreUnknown, genreOf("Pirates"))
	assert.Equal(t, domain.TypeWebtoon, inferType([]string{"Long Strip"}))
	assert.Equal(t, domain.TypeManga, inferType(nil))

	native, err := statuses.Native(domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", native)
	_, err = statuses.Canonical("REBOOTED")
	assert.ErrorIs(t, err, source.ErrUnmappedValue)
}

type stubNative struct {
	source.Source
	name string
}

func (s stubNative) Info() source.Information { return source.Information{Name: s.name} }
