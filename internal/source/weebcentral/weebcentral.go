// Package weebcentral scrapes the WeebCentral catalog.
package weebcentral

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/DokushoHQ/backends/internal/chapters"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
	"github.com/DokushoHQ/backends/internal/source/htmlq"
)

// ID is the registry id of the catalog.
const ID = "weebcentral"

const (
	defaultBaseURL = "https://weebcentral.com"
	pageSize       = 32
	moreResults    = "View More Results.."
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:71.0) Gecko/20100101 Firefox/77.0"
)

var (
	serieURLPattern = regexp.MustCompile(`^/series/([^/]+)(?:/|$)`)
	serieHref       = regexp.MustCompile(`/series/([^/?#]+)`)
	chapterHref     = regexp.MustCompile(`/chapters/([^/?#]+)`)
	pageAlt         = regexp.MustCompile(`Page (\d+)`)
)

// Adapter implements source.Source for WeebCentral.
type Adapter struct {
	fetch   *fetch.Client
	baseURL string
	info    source.Information
	api     source.APIInformation
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another host.
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.baseURL = strings.TrimRight(u, "/")
	}
}

// New creates the adapter and registers its rate limit with fc.
func New(fc *fetch.Client, enabled []domain.Language, opts ...Option) *Adapter {
	a := &Adapter{fetch: fc, baseURL: defaultBaseURL}
	for _, opt := range opts {
		opt(a)
	}

	languages := []domain.Language{domain.LanguageEn}
	a.info = source.Information{
		ID:               ID,
		Name:             "WeebCentral",
		URL:              defaultBaseURL,
		Icon:             defaultBaseURL + "/favicon.ico",
		Version:          "1.0.0",
		NSFW:             true,
		UpdatedAt:        time.Date(2025, 8, 14, 15, 10, 0, 0, time.UTC),
		Languages:        languages,
		EnabledLanguages: source.EnabledLanguages(languages, enabled),
		SearchFilters:    vocabulary.Filters(true, true, true, true, vocabulary.Types.Values()),
	}
	a.api = source.APIInformation{
		BaseURL:               a.baseURL,
		Headers:               http.Header{"User-Agent": {userAgent}},
		MinimumUpdateInterval: 300 * time.Minute,
		Timeout:               30 * time.Second,
		CanBlockScraping:      true,
		RateLimitMax:          1,
		RateLimitDuration:     10 * time.Second,
	}
	fc.Configure(ID, a.api)
	return a
}

func (a *Adapter) Info() source.Information       { return a.info }
func (a *Adapter) APIInfo() source.APIInformation { return a.api }

func (a *Adapter) SerieURL(externalID string) string {
	return a.baseURL + "/series/" + externalID
}

func (a *Adapter) ParseURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "weebcentral.com") {
		return "", false
	}
	m := serieURLPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (a *Adapter) get(ctx context.Context, path string, query url.Values) (*html.Node, string, error) {
	body, err := a.fetch.Do(ctx, fetch.Request{
		SourceID: ID,
		URL:      a.baseURL + path,
		Query:    query,
		Headers:  a.api.Headers,
		Timeout:  a.api.Timeout,
	})
	if err != nil {
		return nil, "", err
	}
	doc, err := htmlq.Parse(body)
	if err != nil {
		return nil, "", source.Parse("%s %s: %v", ID, path, err)
	}
	return doc, string(body), nil
}

func (a *Adapter) FetchPopular(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.FetchSearch(ctx, page, source.SearchFilter{Sort: domain.SortPopularity, Order: domain.OrderDesc})
}

func (a *Adapter) FetchLatest(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.FetchSearch(ctx, page, source.SearchFilter{Sort: domain.SortLatest, Order: domain.OrderDesc})
}

func (a *Adapter) FetchSearch(ctx context.Context, page int, filter source.SearchFilter) (source.Page[source.SearchItem], error) {
	var empty source.Page[source.SearchItem]
	query, err := searchQuery(page, filter)
	if err != nil {
		return empty, err
	}

	doc, raw, err := a.get(ctx, "/search/data", query)
	if err != nil {
		return empty, err
	}

	var items []source.SearchItem
	for _, article := range htmlq.FindAll(doc, htmlq.All(htmlq.Tag("article"), htmlq.Class("bg-base-300"))) {
		section := htmlq.First(article, htmlq.All(htmlq.Tag("section"), htmlq.Class("hidden", "lg:block")))
		link := htmlq.First(section, htmlq.All(htmlq.Tag("a"), htmlq.AttrContains("href", "/series/")))
		if link == nil {
			continue
		}
		m := serieHref.FindStringSubmatch(htmlq.Attr(link, "href"))
		if m == nil {
			continue
		}

		title := htmlq.Text(link)
		if title == "" {
			if tip := htmlq.Ancestor(link, htmlq.HasAttr("data-tip")); tip != nil {
				title = htmlq.Attr(tip, "data-tip")
			}
		}
		if title == "" {
			title = "Unknown"
		}

		titles := domain.MultiLanguage{}
		titles.Add(domain.LanguageEn, title)
		items = append(items, source.SearchItem{
			ID:    m[1],
			Title: titles,
			Cover: a.listingCover(article),
		})
	}

	return source.Page[source.SearchItem]{
		Items:       items,
		HasNextPage: strings.Contains(raw, moreResults),
	}, nil
}

func (a *Adapter) listingCover(article *html.Node) string {
	picture := htmlq.First(article, htmlq.Tag("picture"))
	if src := htmlq.FirstAttr(picture, htmlq.All(htmlq.Tag("source"), htmlq.AttrEquals("type", "image/webp")), "srcset"); src != "" {
		return source.AbsoluteURL(a.baseURL, src)
	}
	return source.AbsoluteURL(a.baseURL, htmlq.FirstAttr(picture, htmlq.Tag("img"), "src"))
}

func searchQuery(page int, filter source.SearchFilter) (url.Values, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa((page-1)*pageSize))
	q.Set("official", "Any")
	q.Set("display_mode", "Full Display")

	if filter.Query != "" {
		q.Set("text", filter.Query)
	}
	if filter.Sort != "" {
		v, err := vocabulary.Sorts.Native(filter.Sort)
		if err != nil {
			return nil, err
		}
		q.Set("sort", v)
	}
	if filter.Order != "" {
		v, err := vocabulary.Orders.Native(filter.Order)
		if err != nil {
			return nil, err
		}
		q.Set("order", v)
	}
	for _, t := range filter.Types {
		v, err := vocabulary.Types.Native(t)
		if err != nil {
			return nil, err
		}
		q.Add("included_type", v)
	}
	for _, s := range filter.Status {
		v, err := vocabulary.Status.Native(s)
		if err != nil {
			return nil, err
		}
		q.Add("included_status", v)
	}
	for _, g := range domain.UniqueGenres(filter.IncludeGenres) {
		v, err := vocabulary.Genres.Native(g)
		if err != nil {
			return nil, err
		}
		q.Add("included_tag", v)
	}
	for _, g := range domain.UniqueGenres(filter.ExcludeGenres) {
		v, err := vocabulary.Genres.Native(g)
		if err != nil {
			return nil, err
		}
		q.Add("excluded_tag", v)
	}
	for _, person := range slices.Concat(filter.Artists, filter.Authors) {
		q.Add("author", person)
	}
	return q, nil
}

// labeled returns the first list item whose text contains label.
func labeled(doc *html.Node, label string) *html.Node {
	return htmlq.First(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "li" && strings.Contains(htmlq.Text(n), label)
	})
}

func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (*source.Serie, error) {
	doc, _, err := a.get(ctx, "/series/"+externalID, nil)
	if err != nil {
		return nil, err
	}

	title := htmlq.FirstText(doc, htmlq.Tag("h1"))
	if title == "" {
		return nil, source.Parse("%s serie %s: missing title", ID, externalID)
	}

	serie := &source.Serie{
		ID:              externalID,
		Title:           domain.MultiLanguage{},
		AlternateTitles: domain.MultiLanguage{},
		Synopsis:        domain.MultiLanguage{},
		Type:            domain.TypeManga,
		ExternalURL:     a.SerieURL(externalID),
	}
	serie.Title.Add(domain.LanguageEn, title)

	cover := htmlq.FirstAttr(doc, htmlq.All(htmlq.Tag("img"), htmlq.AttrContains("alt", "cover")), "src")
	if cover == "" {
		cover = htmlq.FirstAttr(doc, htmlq.All(htmlq.Tag("source"), htmlq.AttrEquals("type", "image/webp")), "srcset")
	}
	serie.Cover = source.AbsoluteURL(a.baseURL, cover)

	synopsis := htmlq.First(doc, htmlq.All(htmlq.Tag("p"), htmlq.Class("whitespace-pre-wrap")))
	serie.Synopsis.Add(domain.LanguageEn, source.Markdown(htmlq.Render(synopsis)))

	if li := labeled(doc, "Associated Name(s)"); li != nil {
		for _, alt := range htmlq.FindAll(li, htmlq.Tag("li")) {
			serie.AlternateTitles.Add(domain.LanguageEn, htmlq.Text(alt))
		}
	}

	if li := labeled(doc, "Author(s):"); li != nil {
		for _, link := range htmlq.FindAll(li, htmlq.All(htmlq.Tag("a"), htmlq.AttrContains("href", "/search?author="))) {
			if name := strings.TrimSuffix(htmlq.Text(link), ","); name != "" {
				serie.Authors = append(serie.Authors, name)
			}
		}
	}
	serie.Artists = slices.Clone(serie.Authors)

	if li := labeled(doc, "Tags(s):"); li != nil {
		var natives []string
		for _, link := range htmlq.FindAll(li, htmlq.All(htmlq.Tag("a"), htmlq.AttrContains("href", "/search?included_tag="))) {
			natives = append(natives, htmlq.Text(link))
		}
		serie.Genres = vocabulary.GenresOf(natives)
	}

	if li := labeled(doc, "Status:"); li != nil {
		for _, link := range htmlq.FindAll(li, htmlq.Tag("a")) {
			st, err := vocabulary.Status.Canonical(htmlq.Text(link))
			if err != nil {
				return nil, err
			}
			serie.Status = append(serie.Status, st)
		}
	}

	if li := labeled(doc, "Type:"); li != nil {
		for _, link := range htmlq.FindAll(li, htmlq.Tag("a")) {
			t, err := vocabulary.Types.Canonical(htmlq.Text(link))
			if err != nil {
				return nil, err
			}
			serie.Type = t
		}
	}

	return serie, nil
}

func (a *Adapter) FetchChapters(ctx context.Context, externalID string) (*source.ChapterList, error) {
	doc, _, err := a.get(ctx, "/series/"+externalID+"/full-chapter-list", nil)
	if err != nil {
		return nil, err
	}

	var (
		list   []source.Chapter
		titles []string
		seen   = map[string]bool{}
	)
	for _, row := range htmlq.FindAll(doc, htmlq.All(htmlq.Tag("div"), htmlq.Class("flex", "items-center"))) {
		link := htmlq.First(row, htmlq.All(htmlq.Tag("a"), htmlq.AttrContains("href", "/chapters/")))
		if link == nil {
			continue
		}
		href := htmlq.Attr(link, "href")
		m := chapterHref.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true

		var title string
		if grow := htmlq.First(link, htmlq.All(htmlq.Tag("span"), htmlq.Class("grow"))); grow != nil {
			title = htmlq.FirstText(grow, htmlq.Tag("span"))
		}

		uploaded := source.UnknownUploadDate
		if dt := htmlq.FirstAttr(row, htmlq.HasAttr("datetime"), "datetime"); dt != "" {
			if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
				uploaded = parsed
			}
		}

		titleML := domain.MultiLanguage{}
		titleML.Add(domain.LanguageEn, title)
		list = append(list, source.Chapter{
			ID:          m[1],
			Title:       titleML,
			Language:    domain.LanguageEn,
			DateUpload:  uploaded,
			ExternalURL: source.AbsoluteURL(a.baseURL, href),
		})
		titles = append(titles, title)
	}

	numbers := make([]float64, len(list))
	for i, n := range chapters.AssignSeasonedChapterNumbers(titles) {
		list[i].ChapterNumber = n.ChapterNumber
		list[i].VolumeNumber = n.VolumeNumber
		list[i].VolumeName = n.VolumeName
		numbers[i] = n.ChapterNumber
	}

	return &source.ChapterList{
		Chapters:        list,
		MissingChapters: chapters.CalculateMissingChapters(numbers),
	}, nil
}

func (a *Adapter) FetchChapterPages(ctx context.Context, _, chapterID string) ([]source.PageDescriptor, error) {
	doc, _, err := a.get(ctx, "/chapters/"+chapterID+"/images", url.Values{"reading_style": {"long_strip"}})
	if err != nil {
		return nil, err
	}

	type numbered struct {
		number int
		url    string
	}
	var pages []numbered
	for _, img := range htmlq.FindAll(doc, htmlq.Tag("img")) {
		src := htmlq.Attr(img, "src")
		if src == "" {
			continue
		}
		number := len(pages) + 1
		if m := pageAlt.FindStringSubmatch(htmlq.Attr(img, "alt")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				number = n
			}
		}
		pages = append(pages, numbered{number: number, url: source.AbsoluteURL(a.baseURL, src)})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s chapter %s has no pages", source.ErrNotFound, ID, chapterID)
	}

	slices.SortStableFunc(pages, func(x, y numbered) int { return x.number - y.number })
	out := make([]source.PageDescriptor, len(pages))
	for i, p := range pages {
		out[i] = source.PageDescriptor{Index: i, URL: p.url}
	}
	return out, nil
}
