package suwayomi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DokushoHQ/backends/internal/chapters"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
)

// IDPrefix starts the registry id of every proxied catalog.
const IDPrefix = "suwayomi-"

// placeholderSite stands in until a serie's real URL reveals the catalog host.
const placeholderSite = "https://unknown.local"

// Adapter is one catalog of the server. Serie ids are "<catalog id>:<path>",
// the catalog's own stable URL path; the server's numeric ids are resolved
// on demand and cached.
type Adapter struct {
	client  *Client
	catalog CatalogInfo
	lang    domain.Language
	info    source.Information
	api     source.APIInformation

	mu       sync.RWMutex
	siteURL  string
	mangaIDs map[string]int
}

// NewAdapter wraps one server catalog.
func NewAdapter(client *Client, catalog CatalogInfo) *Adapter {
	lang := catalogLanguage(catalog.Lang)
	a := &Adapter{
		client:   client,
		catalog:  catalog,
		lang:     lang,
		siteURL:  placeholderSite,
		mangaIDs: make(map[string]int),
	}
	a.info = source.Information{
		ID:               IDPrefix + catalog.ID,
		Name:             catalog.Name + " (Suwayomi)",
		URL:              placeholderSite,
		Icon:             source.AbsoluteURL(client.BaseURL(), catalog.IconURL),
		Version:          "1.0.0",
		NSFW:             catalog.IsNSFW,
		UpdatedAt:        time.Now().UTC(),
		Languages:        []domain.Language{lang},
		EnabledLanguages: []domain.Language{lang},
		SearchFilters: domain.SupportedFilters{
			Query: true,
		},
	}
	a.api = source.APIInformation{
		BaseURL:               client.BaseURL(),
		MinimumUpdateInterval: time.Hour,
		Timeout:               30 * time.Second,
		RateLimitMax:          10,
		RateLimitDuration:     time.Minute,
	}
	client.fetch.Configure(a.info.ID, a.api)
	return a
}

// Info reports the discovered catalog host once one is known.
func (a *Adapter) Info() source.Information {
	info := a.info
	info.URL = a.site()
	return info
}

func (a *Adapter) APIInfo() source.APIInformation { return a.api }

func (a *Adapter) site() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.siteURL
}

func (a *Adapter) discover(realURL *string) {
	if realURL == nil || *realURL == "" {
		return
	}
	u, err := url.Parse(*realURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.siteURL == placeholderSite {
		a.siteURL = u.Scheme + "://" + u.Host
	}
}

func (a *Adapter) serieID(path string) string {
	return a.catalog.ID + ":" + path
}

func splitSerieID(id string) (catalogID, path string) {
	catalogID, path, _ = strings.Cut(id, ":")
	return catalogID, path
}

func (a *Adapter) SerieURL(externalID string) string {
	_, path := splitSerieID(externalID)
	return source.AbsoluteURL(a.site(), path)
}

// ParseURL only recognizes URLs on the discovered catalog host.
func (a *Adapter) ParseURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	site, err := url.Parse(a.site())
	if err != nil || site.Host != u.Host || a.site() == placeholderSite {
		return "", false
	}
	return a.serieID(u.Path), true
}

func (a *Adapter) FetchPopular(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.list(ctx, FetchPopular, "", page)
}

// FetchLatest falls back to the popular listing for catalogs without one.
func (a *Adapter) FetchLatest(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	if !a.catalog.SupportsLatest {
		return a.list(ctx, FetchPopular, "", page)
	}
	return a.list(ctx, FetchLatest, "", page)
}

func (a *Adapter) FetchSearch(ctx context.Context, page int, filter source.SearchFilter) (source.Page[source.SearchItem], error) {
	return a.list(ctx, FetchSearch, filter.Query, page)
}

func (a *Adapter) list(ctx context.Context, kind FetchType, query string, page int) (source.Page[source.SearchItem], error) {
	if page < 1 {
		page = 1
	}
	result, err := a.client.FetchSourceManga(ctx, a.info.ID, a.catalog.ID, kind, query, page)
	if err != nil {
		return source.Page[source.SearchItem]{}, err
	}

	items := make([]source.SearchItem, 0, len(result.Mangas))
	for _, m := range result.Mangas {
		a.remember(m.URL, m.ID)
		title := domain.MultiLanguage{}
		title.Add(a.lang, m.Title)
		items = append(items, source.SearchItem{
			ID:    a.serieID(m.URL),
			Title: title,
			Cover: a.thumbnail(m.ThumbnailURL),
		})
	}
	return source.Page[source.SearchItem]{Items: items, HasNextPage: result.HasNextPage}, nil
}

func (a *Adapter) thumbnail(path *string) string {
	if path == nil {
		return ""
	}
	return source.AbsoluteURL(a.client.BaseURL(), *path)
}

func (a *Adapter) remember(path string, mangaID int) {
	a.mu.Lock()
	a.mangaIDs[path] = mangaID
	a.mu.Unlock()
}

// resolve finds the server id of a serie: the cache, then a lookup by URL,
// then a search by the URL slug. Only an exact URL match is accepted.
func (a *Adapter) resolve(ctx context.Context, externalID string) (int, error) {
	catalogID, path := splitSerieID(externalID)
	if catalogID != a.catalog.ID || path == "" {
		return 0, fmt.Errorf("%w: serie %q does not belong to catalog %s", source.ErrNotFound, externalID, a.catalog.ID)
	}

	a.mu.RLock()
	id, ok := a.mangaIDs[path]
	a.mu.RUnlock()
	if ok {
		return id, nil
	}

	ref, err := a.client.MangaByURL(ctx, a.info.ID, catalogID, path)
	if err != nil {
		return 0, err
	}
	if ref != nil && ref.URL == path {
		a.remember(path, ref.ID)
		return ref.ID, nil
	}

	result, err := a.client.FetchSourceManga(ctx, a.info.ID, catalogID, FetchSearch, searchTerm(path), 1)
	if err != nil {
		return 0, err
	}
	for _, m := range result.Mangas {
		if m.URL == path {
			a.remember(path, m.ID)
			return m.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: no exact url match for %s", source.ErrNotFound, externalID)
}

// searchTerm turns the last path segment into words: "/manga/solo-leveling/"
// becomes "solo leveling".
func searchTerm(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return strings.NewReplacer("-", " ", "_", " ").Replace(parts[len(parts)-1])
}

func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (*source.Serie, error) {
	mangaID, err := a.resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	m, err := a.client.FetchManga(ctx, a.info.ID, mangaID)
	if err != nil {
		return nil, err
	}
	a.discover(m.RealURL)

	st, err := statuses.Canonical(m.Status)
	if err != nil {
		return nil, err
	}

	serie := &source.Serie{
		ID:              externalID,
		Title:           domain.MultiLanguage{},
		AlternateTitles: domain.MultiLanguage{},
		Synopsis:        domain.MultiLanguage{},
		Cover:           a.thumbnail(m.ThumbnailURL),
		Status:          []domain.SerieStatus{st},
		Type:            inferType(m.Genre),
		Genres:          genresOf(m.Genre),
		ExternalURL:     a.SerieURL(externalID),
	}
	serie.Title.Add(a.lang, m.Title)
	if m.Description != nil {
		serie.Synopsis.Add(a.lang, source.Markdown(*m.Description))
	}
	if m.Author != nil && *m.Author != "" {
		serie.Authors = []string{*m.Author}
	}
	if m.Artist != nil && *m.Artist != "" {
		serie.Artists = []string{*m.Artist}
	}
	if m.RealURL != nil && *m.RealURL != "" {
		serie.ExternalURL = *m.RealURL
	}
	return serie, nil
}

func (a *Adapter) FetchChapters(ctx context.Context, externalID string) (*source.ChapterList, error) {
	mangaID, err := a.resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	raw, err := a.client.FetchChapters(ctx, a.info.ID, mangaID)
	if err != nil {
		return nil, err
	}

	list := make([]source.Chapter, 0, len(raw))
	numbers := make([]float64, 0, len(raw))
	for _, c := range raw {
		ch := a.toChapter(c)
		list = append(list, ch)
		numbers = append(numbers, ch.ChapterNumber)
	}
	return &source.ChapterList{
		Chapters:        list,
		MissingChapters: chapters.CalculateMissingChapters(numbers),
	}, nil
}

func (a *Adapter) toChapter(c Chapter) source.Chapter {
	number := c.ChapterNumber
	if number < 0 {
		number = 0
		if n, ok := chapters.ExtractChapterNumber(c.Name); ok {
			number = n
		}
	}

	ch := source.Chapter{
		ID:            strconv.Itoa(c.ID),
		Title:         domain.MultiLanguage{},
		ChapterNumber: number,
		Language:      a.lang,
		DateUpload:    source.UnknownUploadDate,
		ExternalURL:   source.AbsoluteURL(a.site(), c.URL),
		Groups:        []source.Group{},
	}
	ch.Title.Add(a.lang, strings.TrimSpace(c.Name))
	if ms, err := c.UploadDate.Int64(); err == nil {
		ch.DateUpload = time.UnixMilli(ms).UTC()
	}
	if c.RealURL != nil && *c.RealURL != "" {
		ch.ExternalURL = *c.RealURL
	}
	if c.Scanlator != nil && strings.TrimSpace(*c.Scanlator) != "" {
		name := strings.TrimSpace(*c.Scanlator)
		ch.Groups = append(ch.Groups, source.Group{ID: name, Name: name})
	}
	return ch
}

func (a *Adapter) FetchChapterPages(ctx context.Context, _, chapterID string) ([]source.PageDescriptor, error) {
	id, err := strconv.Atoi(chapterID)
	if err != nil {
		return nil, source.Parse("suwayomi chapter id %q: %v", chapterID, err)
	}
	paths, err := a.client.FetchChapterPages(ctx, a.info.ID, id)
	if err != nil {
		return nil, err
	}

	pages := make([]source.PageDescriptor, len(paths))
	for i, p := range paths {
		pages[i] = source.PageDescriptor{Index: i, URL: source.AbsoluteURL(a.client.BaseURL(), p)}
	}
	return pages, nil
}
