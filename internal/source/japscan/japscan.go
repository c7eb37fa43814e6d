// Package japscan scrapes Japscan through the byparr browser proxy. The site
// sits behind a bot challenge and hides chapter links and page images behind
// obfuscated scripts, so every request is made by a real browser.
package japscan

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/DokushoHQ/backends/internal/source/byparr"
	"github.com/DokushoHQ/backends/internal/source/fetch"
	"github.com/DokushoHQ/backends/internal/source/htmlq"
)

// ID is the registry id of the catalog.
const ID = "japscan"

const (
	defaultBaseURL = "https://www.japscan.vip"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:71.0) Gecko/20100101 Firefox/77.0"

	pageTimeout   = 30 * time.Second
	readerTimeout = 60 * time.Second
)

var (
	serieURLPattern = regexp.MustCompile(`^/(manga|manhwa|manhua)/([^/]+)(?:/|$)`)
	numberPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	numericID       = regexp.MustCompile(`^(\d+(?:\.\d+)?)$`)

	chapterPrefixes = []string{"/manga/", "/manhua/", "/manhwa/"}
	skippedBadges   = []string{"SPOILER", "RAW", "VUS"}
	dateLayouts     = []string{"2 Jan 2006", "02 Jan 2006", "Jan 2, 2006", "2006-01-02"}
)

// captureImages traps the page script's assignment of imagesLink before the
// reader obfuscation runs.
const captureImages = `
window.__capturedImagesLink = null;
Object.defineProperty(Object.prototype, 'imagesLink', {
	set: function(value) {
		window.__capturedImagesLink = value;
		Object.defineProperty(this, '_imagesLink', {value: value, writable: true, enumerable: false, configurable: true});
	},
	get: function() { return this._imagesLink; },
	enumerable: false,
	configurable: true
});`

const readCapturedImages = `window.__capturedImagesLink`

// Adapter implements source.Source for Japscan.
type Adapter struct {
	proxy   *byparr.Client
	baseURL string
	info    source.Information
	api     source.APIInformation
}

// New creates the adapter. Requests go through proxy and share the source's
// rate limit on fc.
func New(fc *fetch.Client, proxy *byparr.Client, enabled []domain.Language) *Adapter {
	a := &Adapter{proxy: proxy, baseURL: defaultBaseURL}

	languages := []domain.Language{domain.LanguageFr}
	a.info = source.Information{
		ID:               ID,
		Name:             "Japscan",
		URL:              defaultBaseURL,
		Icon:             "https://www.google.com/s2/favicons?domain=japscan.vip&sz=64",
		Version:          "1.0.0",
		UpdatedAt:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Languages:        languages,
		EnabledLanguages: source.EnabledLanguages(languages, enabled),
		SearchFilters:    vocabulary.Filters(true, false, false, false, nil),
	}
	a.api = source.APIInformation{
		BaseURL: defaultBaseURL,
		Headers: http.Header{
			"User-Agent": {userAgent},
			"Referer":    {defaultBaseURL + "/"},
		},
		MinimumUpdateInterval: 300 * time.Minute,
		Timeout:               readerTimeout,
		CanBlockScraping:      true,
		RateLimitMax:          1,
		RateLimitDuration:     5 * time.Second,
	}
	fc.Configure(ID, a.api)
	return a
}

func (a *Adapter) Info() source.Information       { return a.info }
func (a *Adapter) APIInfo() source.APIInformation { return a.api }

// SerieURL needs the trailing slash; ids look like "manga/one-piece".
func (a *Adapter) SerieURL(externalID string) string {
	return a.baseURL + "/" + externalID + "/"
}

func (a *Adapter) ParseURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.HasSuffix(u.Hostname(), "japscan.vip") {
		return "", false
	}
	m := serieURLPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1] + "/" + m[2], true
}

func (a *Adapter) FetchPopular(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.FetchSearch(ctx, page, source.SearchFilter{Sort: domain.SortPopularity, Order: domain.OrderDesc})
}

func (a *Adapter) FetchLatest(ctx context.Context, page int) (source.Page[source.SearchItem], error) {
	return a.FetchSearch(ctx, page, source.SearchFilter{Sort: domain.SortLatest, Order: domain.OrderDesc})
}

type searchResult struct {
	URL   string `json:"url"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// FetchSearch uses the quick-search endpoint for text queries and the
// paginated catalog listing otherwise.
func (a *Adapter) FetchSearch(ctx context.Context, page int, filter source.SearchFilter) (source.Page[source.SearchItem], error) {
	if strings.TrimSpace(filter.Query) != "" {
		return a.quickSearch(ctx, filter.Query)
	}

	var empty source.Page[source.SearchItem]
	sort := "popular"
	if filter.Sort != "" {
		s, err := vocabulary.Sorts.Native(filter.Sort)
		if err != nil {
			return empty, err
		}
		sort = s
	}
	if page < 1 {
		page = 1
	}

	listURL := fmt.Sprintf("%s/mangas/?sort=%s&p=%d", a.baseURL, sort, page)
	doc, err := a.load(ctx, listURL)
	if err != nil {
		return empty, err
	}

	var items []source.SearchItem
	list := htmlq.First(doc, htmlq.Class("mangas-list"))
	for _, block := range htmlq.FindAll(list, htmlq.Class("manga-block")) {
		link := htmlq.First(block, htmlq.Tag("a"))
		id := trimID(htmlq.Attr(link, "href"))
		cover := imageSource(htmlq.First(link, htmlq.Tag("img")))
		if id == "" || cover == "" {
			continue
		}
		title := domain.MultiLanguage{}
		title.Add(domain.LanguageFr, htmlq.Text(link))
		items = append(items, source.SearchItem{
			ID:    id,
			Title: title,
			Cover: source.AbsoluteURL(a.baseURL, cover),
		})
	}

	return source.Page[source.SearchItem]{Items: items, HasNextPage: hasNextPage(doc)}, nil
}

func (a *Adapter) quickSearch(ctx context.Context, query string) (source.Page[source.SearchItem], error) {
	var empty source.Page[source.SearchItem]
	sol, err := a.proxy.Post(ctx, ID, a.baseURL+"/ls/", "search="+url.QueryEscape(query), byparr.Options{MaxTimeout: pageTimeout})
	if err != nil {
		return empty, err
	}

	var results []searchResult
	if err := json.Unmarshal(bodyText(sol.Response), &results); err != nil {
		return empty, source.Parse("japscan quick search: %v", err)
	}

	items := make([]source.SearchItem, 0, len(results))
	for _, r := range results {
		id := trimID(r.URL)
		if id == "" {
			continue
		}
		title := domain.MultiLanguage{}
		title.Add(domain.LanguageFr, r.Name)
		items = append(items, source.SearchItem{
			ID:    id,
			Title: title,
			Cover: source.AbsoluteURL(a.baseURL, r.Image),
		})
	}
	return source.Page[source.SearchItem]{Items: items}, nil
}

// FetchDetail reads the labelled paragraphs of the serie card.
func (a *Adapter) FetchDetail(ctx context.Context, externalID string) (*source.Serie, error) {
	doc, err := a.load(ctx, a.SerieURL(externalID))
	if err != nil {
		return nil, err
	}

	serie := &source.Serie{
		ID:              externalID,
		Title:           domain.MultiLanguage{},
		AlternateTitles: domain.MultiLanguage{},
		Synopsis:        domain.MultiLanguage{},
		Status:          []domain.SerieStatus{domain.StatusUnknown},
		Type:            domain.TypeManga,
		Genres:          []domain.Genre{},
		ExternalURL:     a.SerieURL(externalID),
	}
	serie.Title.Add(domain.LanguageFr, htmlq.FirstText(doc, htmlq.Tag("h1")))

	if prefix, _, ok := strings.Cut(externalID, "/"); ok {
		if t, err := vocabulary.Types.Canonical(prefix); err == nil {
			serie.Type = t
		}
	}

	card := htmlq.First(htmlq.First(doc, htmlq.ID("main")), htmlq.Class("card-body"))
	if cover := imageSource(htmlq.First(card, htmlq.Tag("img"))); cover != "" {
		serie.Cover = source.AbsoluteURL(a.baseURL, cover)
	}

	var original string
	var alternates, genres []string
	for _, p := range htmlq.FindAll(card, htmlq.Tag("p")) {
		label, value, ok := strings.Cut(htmlq.Text(p), ":")
		if !ok {
			continue
		}
		label, value = strings.TrimSpace(label), strings.TrimSpace(value)

		switch {
		case strings.Contains(label, "Auteur"):
			if value != "" {
				serie.Authors = []string{value}
			}
		case strings.Contains(label, "Artiste"):
			if value != "" {
				serie.Artists = []string{value}
			}
		case strings.Contains(label, "Statut"):
			if value == "" {
				continue
			}
			st, err := vocabulary.Status.Canonical(value)
			if err != nil {
				return nil, err
			}
			serie.Status = []domain.SerieStatus{st}
		case strings.Contains(label, "Genre"):
			genres = append(genres, splitList(value)...)
		case strings.Contains(label, "Nom Original"):
			original = value
		case strings.Contains(label, "Alternatif"):
			alternates = append(alternates, splitList(value)...)
		case strings.Contains(label, "Synopsis"):
			serie.Synopsis.Add(domain.LanguageFr, value)
		}
	}

	serie.AlternateTitles.Add(domain.LanguageFr, original)
	for _, alt := range alternates {
		serie.AlternateTitles.Add(domain.LanguageFr, alt)
	}
	serie.Genres = vocabulary.GenresOf(genres)
	return serie, nil
}

type linkCandidate struct {
	name    string
	url     string
	nonHref bool
}

// FetchChapters scans every attribute of each chapter row for a reader path.
// The site plants decoy hrefs, so values held in other attributes win, then
// shorter paths.
func (a *Adapter) FetchChapters(ctx context.Context, externalID string) (*source.ChapterList, error) {
	doc, err := a.load(ctx, a.SerieURL(externalID))
	if err != nil {
		return nil, err
	}

	var list []source.Chapter
	seen := map[string]bool{}
	container := htmlq.First(doc, htmlq.ID("list_chapters"))
	for _, row := range htmlq.FindAll(container, htmlq.Class("list_chapters")) {
		if hasSkippedBadge(row) {
			continue
		}
		link, ok := chapterLink(row)
		if !ok {
			continue
		}

		segments := strings.FieldsFunc(link.url, func(r rune) bool { return r == '/' })
		chapterID := segments[len(segments)-1]
		if seen[chapterID] {
			continue
		}
		seen[chapterID] = true

		title := link.name
		if title == "" {
			title = "Chapitre " + chapterID
		}

		ch := source.Chapter{
			ID:            chapterID,
			Title:         domain.MultiLanguage{},
			ChapterNumber: chapterNumber(title, chapterID),
			Language:      domain.LanguageFr,
			DateUpload:    parseDate(htmlq.FirstText(row, htmlq.Tag("span"))),
			ExternalURL:   source.AbsoluteURL(a.baseURL, link.url),
			Groups:        []source.Group{},
		}
		ch.Title.Add(domain.LanguageFr, title)
		list = append(list, ch)
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

// FetchChapterPages loads the reader and reads the image list captured by
// the init script. Only images on the site's own hosts are kept.
func (a *Adapter) FetchChapterPages(ctx context.Context, externalID, chapterID string) ([]source.PageDescriptor, error) {
	readerURL := a.baseURL + "/" + externalID + "/" + chapterID + "/"
	sol, err := a.proxy.Get(ctx, ID, readerURL, byparr.Options{
		MaxTimeout: readerTimeout,
		InitJS:     captureImages,
		JS:         readCapturedImages,
	})
	if err != nil {
		return nil, err
	}

	var links []string
	if len(sol.JSResult) > 0 {
		if err := json.Unmarshal(sol.JSResult, &links); err != nil {
			return nil, source.Parse("japscan images for %s/%s: %v", externalID, chapterID, err)
		}
	}
	if len(links) == 0 {
		return nil, source.Parse("japscan images for %s/%s: imagesLink not captured", externalID, chapterID)
	}

	host := strings.TrimPrefix(hostname(a.baseURL), "www.")
	var pages []source.PageDescriptor
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" || !strings.HasSuffix(u.Hostname(), host) {
			continue
		}
		q := u.Query()
		q.Set("y", "1")
		u.RawQuery = q.Encode()
		pages = append(pages, source.PageDescriptor{Index: len(pages), URL: u.String()})
	}
	if len(pages) == 0 {
		return nil, source.Parse("japscan images for %s/%s: no image on %s", externalID, chapterID, host)
	}
	return pages, nil
}

// load fetches a page through the proxy and rejects challenge and error pages.
func (a *Adapter) load(ctx context.Context, pageURL string) (*html.Node, error) {
	sol, err := a.proxy.Get(ctx, ID, pageURL, byparr.Options{MaxTimeout: pageTimeout})
	if err != nil {
		return nil, err
	}
	doc, err := htmlq.Parse([]byte(sol.Response))
	if err != nil {
		return nil, source.Parse("japscan %s: %v", pageURL, err)
	}

	title := htmlq.FirstText(doc, htmlq.Tag("title"))
	h1 := htmlq.FirstText(doc, htmlq.Tag("h1"))
	if title == "" || h1 == "Oops!" || strings.Contains(sol.Response, "lost.gif") {
		return nil, &source.FetchError{
			Source: ID,
			URL:    pageURL,
			Err:    fmt.Errorf("%w: error page (title %q, h1 %q)", source.ErrBlocked, title, h1),
		}
	}
	return doc, nil
}

func hasNextPage(doc *html.Node) bool {
	pagination := htmlq.First(doc, htmlq.Class("pagination"))
	items := htmlq.Children(pagination, htmlq.Tag("li"))
	if len(items) == 0 {
		return false
	}
	return !htmlq.HasClass(items[len(items)-1], "disabled")
}

func hasSkippedBadge(row *html.Node) bool {
	for _, badge := range htmlq.FindAll(row, htmlq.Class("badge")) {
		text := htmlq.Text(badge)
		for _, s := range skippedBadges {
			if strings.Contains(text, s) {
				return true
			}
		}
	}
	return false
}

func chapterLink(row *html.Node) (linkCandidate, bool) {
	var candidates []linkCandidate
	for _, a := range htmlq.FindAll(row, htmlq.Tag("a")) {
		name := htmlq.Text(a)
		if name == "" {
			name = strings.TrimSpace(htmlq.Attr(a, "title"))
		}
		for _, attr := range a.Attr {
			if !isChapterPath(attr.Val) {
				continue
			}
			candidates = append(candidates, linkCandidate{name: name, url: attr.Val, nonHref: attr.Key != "href"})
		}
	}
	if len(candidates) == 0 {
		return linkCandidate{}, false
	}

	slices.SortStableFunc(candidates, func(x, y linkCandidate) int {
		if x.nonHref != y.nonHref {
			if x.nonHref {
				return -1
			}
			return 1
		}
		return len(x.url) - len(y.url)
	})
	best := candidates[0]
	if len(strings.FieldsFunc(best.url, func(r rune) bool { return r == '/' })) == 0 {
		return linkCandidate{}, false
	}
	return best, true
}

func isChapterPath(v string) bool {
	for _, p := range chapterPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

func chapterNumber(title, chapterID string) float64 {
	m := numberPattern.FindStringSubmatch(title)
	if m == nil {
		m = numericID.FindStringSubmatch(chapterID)
	}
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return n
}

func parseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return source.UnknownUploadDate
}

func imageSource(img *html.Node) string {
	if src := strings.TrimSpace(htmlq.Attr(img, "data-src")); src != "" {
		return src
	}
	return strings.TrimSpace(htmlq.Attr(img, "src"))
}

func trimID(href string) string {
	href = strings.TrimSpace(href)
	if u, err := url.Parse(href); err == nil && u.Host != "" {
		href = u.Path
	}
	return strings.Trim(href, "/")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// bodyText unwraps JSON the browser rendered inside an HTML document.
func bodyText(response string) []byte {
	raw := []byte(strings.TrimSpace(response))
	if !bytes.HasPrefix(raw, []byte("<")) {
		return raw
	}
	doc, err := htmlq.Parse(raw)
	if err != nil {
		return raw
	}
	if pre := htmlq.First(doc, htmlq.Tag("pre")); pre != nil {
		return []byte(htmlq.Text(pre))
	}
	return []byte(htmlq.FirstText(doc, htmlq.Tag("body")))
}
