// Package mangadex reads the MangaDex REST API. Every response is validated
// against a JSON Schema before it is decoded.
package mangadex

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DokushoHQ/backends/internal/chapters"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

// ID is the registry id of the catalog.
const ID = "mangadex"

const (
	defaultAPIURL     = "https://api.mangadex.org"
	defaultSiteURL    = "https://mangadex.org"
	defaultUploadsURL = "https://uploads.mangadex.org"
	noImageURL        = "https://i.imgur.com/6TrIues.jpeg"

	searchLimit = 20
	latestLimit = 100
	feedLimit   = 500
	feedPause   = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:71.0) Gecko/20100101 Firefox/77.0"
)

var (
	titlePattern   = regexp.MustCompile(`(?i)^/title/([a-f0-9-]{36})(?:/|$)`)
	contentRatings = []string{"safe", "suggestive", "erotica"}
)

// Adapter implements source.Source for MangaDex.
type Adapter struct {
	fetch      *fetch.Client
	apiURL     string
	siteURL    string
	uploadsURL string
	feedPause  time.Duration
	info       source.Information
	api        source.APIInformation
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithAPIURL points the adapter at another API host.
func WithAPIURL(u string) Option {
	return func(a *Adapter) {
		a.apiURL = strings.TrimRight(u, "/")
	}
}

// WithFeedPause sets the pause between chapter feed pages.
func WithFeedPause(d time.Duration) Option {
	return func(a *Adapter) {
		a.feedPause = d
	}
}

// New creates the adapter and registers its rate limit with fc.
func New(fc *fetch.Client, enabled []domain.Language, opts ...Option) *Adapter {
	a := &Adapter{
		fetch:      fc,
		apiURL:     defaultAPIURL,
		siteURL:    defaultSiteURL,
		uploadsURL: defaultUploadsURL,
		feedPause:  feedPause,
	}
	for _, opt := range opts {
		opt(a)
	}

	supported := languages.Values()
	a.info = source.Information{
		ID:               ID,
		Name:             "Mangadex",
		URL:              defaultSiteURL,
		Icon:             defaultSiteURL + "/favicon.ico",
		Version:          "1.0.0",
		NSFW:             true,
		UpdatedAt:        time.Date(2025, 8, 14, 15, 10, 0, 0, time.UTC),
		Languages:        supported,
		EnabledLanguages: source.EnabledLanguages(supported, enabled),
		SearchFilters:    vocabulary.Filters(true, false, true, true, nil),
	}
	a.api = source.APIInformation{
		BaseURL:               a.apiURL,
		Headers:               http.Header{"User-Agent": {userAgent}},
		MinimumUpdateInterval: 300 * time.Minute,
		Timeout:               30 * time.Second,
		CanBlockScraping:      true,
		RateLimitMax:          5,
		RateLimitDuration:     time.Minute,
	}
	fc.Configure(ID, a.api)
	return a
}

func (a *Adapter) Info() source.Information       { return a.info }
func (a *Adapter) APIInfo() source.APIInformation { return a.api }

func (a *Adapter) SerieURL(externalID string) string {
	return a.siteURL + "/title/" + externalID
}

func (a *Adapter) ParseURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "mangadex.org") {
		return "", false
	}
	m := titlePattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

func (a *Adapter) get(ctx context.Context, path string, query url.Values, schema *source.Schema, v any) error {
	body, err := a.fetch.Do(ctx, fetch.Request{
		SourceID: ID,
		URL:      a.apiURL + path,
		Query:    query,
		Headers:  a.api.Headers,
		Timeout:  a.api.Timeout,
	})
	if err != nil {
		return err
	}
	return schema.Decode(body, v)
}

// translatedLanguages lists the enabled languages as locale codes.
func (a *Adapter) translatedLanguages() []string {
	out := make([]string, 0, len(a.info.EnabledLanguages))
	for _, l := range a.info.EnabledLanguages {
		if code, err := languages.Native(l); err == nil {
			out = append(out, code)
		}
	}
	return out
}

func (a *Adapter) FetchPopular(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.FetchSearch(ctx, page, source.SearchFilter{Sort: domain.SortPopularity, Order: domain.OrderDesc})
}

func (a *Adapter) FetchSearch(ctx context.Context, page int, filter source.SearchFilter) (source.Page[source.SearchItem], error) {
	var empty source.Page[source.SearchItem]
	query, err := a.searchQuery(page, filter)
	if err != nil {
		return empty, err
	}

	var resp collection[rawManga]
	if err := a.get(ctx, "/manga", query, mangaListSchema, &resp); err != nil {
		return empty, err
	}

	items := make([]source.SearchItem, 0, len(resp.Data))
	for i := range resp.Data {
		items = append(items, a.toSearchItem(&resp.Data[i]))
	}
	return source.Page[source.SearchItem]{Items: items, HasNextPage: resp.hasNext()}, nil
}

func (a *Adapter) searchQuery(page int, filter source.SearchFilter) (url.Values, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(searchLimit))
	q.Set("offset", strconv.Itoa((page-1)*searchLimit))
	q.Set("includedTagsMode", "AND")
	q.Set("excludedTagsMode", "OR")
	q["contentRating[]"] = contentRatings
	q.Set("includes[]", "cover_art")

	if filter.OnlyEnabledTranslations {
		q["availableTranslatedLanguage[]"] = a.translatedLanguages()
	}
	if filter.Query != "" {
		q.Set("title", filter.Query)
	}
	if filter.Sort != "" && filter.Order != "" {
		sort, err := vocabulary.Sorts.Native(filter.Sort)
		if err != nil {
			return nil, err
		}
		order, err := vocabulary.Orders.Native(filter.Order)
		if err != nil {
			return nil, err
		}
		q.Set("order["+sort+"]", order)
	}
	for _, g := range domain.UniqueGenres(filter.IncludeGenres) {
		id, err := vocabulary.Genres.Native(g)
		if err != nil {
			return nil, err
		}
		q.Add("includedTags[]", id)
	}
	for _, g := range domain.UniqueGenres(filter.ExcludeGenres) {
		id, err := vocabulary.Genres.Native(g)
		if err != nil {
			return nil, err
		}
		q.Add("excludedTags[]", id)
	}
	for _, s := range filter.Status {
		st, err := vocabulary.Status.Native(s)
		if err != nil {
			return nil, err
		}
		q.Add("status[]", st)
	}
	return q, nil
}

// FetchLatest lists series by their most recent chapter: one request for the
// chapter feed, one for the series those chapters belong to.
func (a *Adapter) FetchLatest(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	var empty source.Page[source.SearchItem]
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(latestLimit))
	q.Set("offset", strconv.Itoa((page-1)*latestLimit))
	q.Set("order[publishAt]", "desc")
	q.Set("includeFutureUpdates", "0")
	q.Set("includeFuturePublishAt", "0")
	q.Set("includeEmptyPages", "0")
	q["contentRating[]"] = contentRatings
	if langs := a.translatedLanguages(); len(langs) > 0 {
		q["translatedLanguage[]"] = langs
	}

	var feed collection[struct {
		ID            string            `json:"id"`
		Relationships []rawRelationship `json:"relationships"`
	}]
	if err := a.get(ctx, "/chapter", q, latestSchema, &feed); err != nil {
		return empty, err
	}

	var ids []string
	seen := map[string]bool{}
	for _, c := range feed.Data {
		for _, rel := range c.Relationships {
			if rel.Type == "manga" && !seen[rel.ID] {
				seen[rel.ID] = true
				ids = append(ids, rel.ID)
				break
			}
		}
	}
	if len(ids) == 0 {
		return source.Page[source.SearchItem]{}, nil
	}

	mq := url.Values{}
	mq.Set("includes[]", "cover_art")
	mq.Set("limit", strconv.Itoa(len(ids)))
	mq["contentRating[]"] = contentRatings
	mq["ids[]"] = ids

	var mangas collection[rawManga]
	if err := a.get(ctx, "/manga", mq, mangaListSchema, &mangas); err != nil {
		return empty, err
	}

	byID := make(map[string]*rawManga, len(mangas.Data))
	for i := range mangas.Data {
		byID[mangas.Data[i].ID] = &mangas.Data[i]
	}
	items := make([]source.SearchItem, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			items = append(items, a.toSearchItem(m))
		}
	}
	return source.Page[source.SearchItem]{Items: items, HasNextPage: feed.hasNext()}, nil
}

func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (*source.Serie, error) {
	q := url.Values{"includes[]": {"author", "artist", "cover_art"}}
	var resp struct {
		Data rawManga `json:"data"`
	}
	if err := a.get(ctx, "/manga/"+externalID, q, mangaSchema, &resp); err != nil {
		return nil, err
	}
	return a.toSerie(&resp.Data)
}

// FetchChapters walks the whole chapter feed, pausing between pages.
func (a *Adapter) FetchChapters(ctx context.Context, externalID string) (*source.ChapterList, error) {
	q := url.Values{}
	q.Set("order[volume]", "desc")
	q.Set("order[chapter]", "desc")
	q.Set("limit", strconv.Itoa(feedLimit))
	if langs := a.translatedLanguages(); len(langs) > 0 {
		q["translatedLanguage[]"] = langs
	}
	q.Set("includes[]", "scanlation_group")

	var list []source.Chapter
	for offset := 0; ; offset += feedLimit {
		q.Set("offset", strconv.Itoa(offset))

		var resp collection[rawChapter]
		if err := a.get(ctx, "/manga/"+externalID+"/feed", q, chapterListSchema, &resp); err != nil {
			return nil, err
		}
		for i := range resp.Data {
			ch, ok, err := a.toChapter(&resp.Data[i])
			if err != nil {
				return nil, err
			}
			if ok {
				list = append(list, ch)
			}
		}

		if offset+feedLimit >= resp.Total {
			break
		}
		if err := pause(ctx, a.feedPause); err != nil {
			return nil, err
		}
	}

	numbers := make([]float64, len(list))
	for i, c := range list {
		numbers[i] = c.ChapterNumber
	}
	return &source.ChapterList{
		Chapters:        list,
		MissingChapters: chapters.CalculateMissingChapters(numbers),
	}, nil
}

func (a *Adapter) FetchChapterPages(ctx context.Context, _, chapterID string) ([]source.PageDescriptor, error) {
	var resp rawAtHome
	if err := a.get(ctx, "/at-home/server/"+chapterID, url.Values{"forcePort443": {"false"}}, atHomeSchema, &resp); err != nil {
		return nil, err
	}

	base := strings.TrimRight(resp.BaseURL, "/")
	pages := make([]source.PageDescriptor, len(resp.Chapter.Data))
	for i, file := range resp.Chapter.Data {
		pages[i] = source.PageDescriptor{
			Index: i,
			URL:   base + "/data/" + resp.Chapter.Hash + "/" + file,
		}
	}
	return pages, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
