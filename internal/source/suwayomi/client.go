// Package suwayomi exposes the catalogs of a self-hosted Suwayomi server as
// sources. Every GraphQL response is validated against a JSON Schema.
package suwayomi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

// ErrGraphQL is a request the server answered with GraphQL errors.
var ErrGraphQL = errors.New("suwayomi: graphql error")

// clientKey is the rate limit key for calls not made on behalf of a catalog.
const clientKey = "suwayomi"

// FetchType selects a catalog listing.
type FetchType string

// Listing kinds.
const (
	FetchSearch  FetchType = "SEARCH"
	FetchPopular FetchType = "POPULAR"
	FetchLatest  FetchType = "LATEST"
)

// CatalogInfo is one catalog installed on the server.
type CatalogInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Lang           string `json:"lang"`
	IconURL        string `json:"iconUrl"`
	SupportsLatest bool   `json:"supportsLatest"`
	IsNSFW         bool   `json:"isNsfw"`
}

// Manga is a serie as cached by the server.
type Manga struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	RealURL      *string  `json:"realUrl"`
	ThumbnailURL *string  `json:"thumbnailUrl"`
	Author       *string  `json:"author"`
	Artist       *string  `json:"artist"`
	Description  *string  `json:"description"`
	Status       string   `json:"status"`
	Genre        []string `json:"genre"`
}

// MangaPage is one page of a catalog listing.
type MangaPage struct {
	Mangas      []Manga `json:"mangas"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Chapter is a chapter as cached by the server. UploadDate is epoch
// milliseconds; ChapterNumber is negative when the catalog did not parse one.
type Chapter struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	ChapterNumber float64     `json:"chapterNumber"`
	Scanlator     *string     `json:"scanlator"`
	UploadDate    json.Number `json:"uploadDate"`
	URL           string      `json:"url"`
	RealURL       *string     `json:"realUrl"`
}

// MangaRef is the result of a lookup by catalog URL.
type MangaRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Client talks to the server's GraphQL endpoint.
type Client struct {
	fetch   *fetch.Client
	baseURL string
}

// NewClient creates a client for the server at baseURL.
func NewClient(fc *fetch.Client, baseURL string) *Client {
	return &Client{fetch: fc, baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL is the server root; thumbnails and pages are relative to it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do runs one operation. key selects the rate limit bucket.
func (c *Client) do(ctx context.Context, key, query string, vars map[string]any, schema *source.Schema, out any) error {
	endpoint := c.baseURL + "/api/graphql"
	body, err := c.fetch.PostJSON(ctx, key, endpoint, graphqlRequest{Query: query, Variables: vars}, nil)
	if err != nil {
		return err
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return source.Parse("suwayomi response: %v", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return &source.FetchError{
			Source: key,
			URL:    endpoint,
			Err:    fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, ", ")),
		}
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("%w: suwayomi response missing data", source.ErrSchemaViolation)
	}
	return schema.Decode(resp.Data, out)
}

// Catalogs lists every catalog installed on the server.
func (c *Client) Catalogs(ctx context.Context) ([]CatalogInfo, error) {
	var data struct {
		Sources struct {
			Nodes []CatalogInfo `json:"nodes"`
		} `json:"sources"`
	}
	if err := c.do(ctx, clientKey, sourcesQuery, nil, sourcesSchema, &data); err != nil {
		return nil, err
	}
	return data.Sources.Nodes, nil
}

// FetchSourceManga lists one page of a catalog.
func (c *Client) FetchSourceManga(ctx context.Context, key, catalogID string, kind FetchType, query string, page int) (*MangaPage, error) {
	vars := map[string]any{"input": map[string]any{
		"source": catalogID,
		"type":   kind,
		"query":  query,
		"page":   page,
	}}
	var data struct {
		FetchSourceManga MangaPage `json:"fetchSourceManga"`
	}
	if err := c.do(ctx, key, fetchSourceMangaMutation, vars, sourceMangaSchema, &data); err != nil {
		return nil, err
	}
	return &data.FetchSourceManga, nil
}

// FetchManga refreshes and returns a cached serie.
func (c *Client) FetchManga(ctx context.Context, key string, mangaID int) (*Manga, error) {
	var data struct {
		FetchManga struct {
			Manga Manga `json:"manga"`
		} `json:"fetchManga"`
	}
	if err := c.do(ctx, key, fetchMangaMutation, map[string]any{"id": mangaID}, mangaSchema, &data); err != nil {
		return nil, err
	}
	return &data.FetchManga.Manga, nil
}

// FetchChapters refreshes and returns the chapters of a cached serie.
func (c *Client) FetchChapters(ctx context.Context, key string, mangaID int) ([]Chapter, error) {
	var data struct {
		FetchChapters struct {
			Chapters []Chapter `json:"chapters"`
		} `json:"fetchChapters"`
	}
	if err := c.do(ctx, key, fetchChaptersMutation, map[string]any{"mangaId": mangaID}, chaptersSchema, &data); err != nil {
		return nil, err
	}
	return data.FetchChapters.Chapters, nil
}

// FetchChapterPages returns the page paths of a chapter, relative to BaseURL.
func (c *Client) FetchChapterPages(ctx context.Context, key string, chapterID int) ([]string, error) {
	var data struct {
		FetchChapterPages struct {
			Pages []string `json:"pages"`
		} `json:"fetchChapterPages"`
	}
	if err := c.do(ctx, key, fetchChapterPagesMutation, map[string]any{"chapterId": chapterID}, pagesSchema, &data); err != nil {
		return nil, err
	}
	return data.FetchChapterPages.Pages, nil
}

// MangaByURL finds a cached serie by catalog and catalog URL. It returns
// nil when the server has not cached it yet.
func (c *Client) MangaByURL(ctx context.Context, key, catalogID, rawURL string) (*MangaRef, error) {
	var data struct {
		Mangas struct {
			Nodes []MangaRef `json:"nodes"`
		} `json:"mangas"`
	}
	vars := map[string]any{"sourceId": catalogID, "url": rawURL}
	if err := c.do(ctx, key, mangaByURLQuery, vars, mangaByURLSchema, &data); err != nil {
		return nil, err
	}
	if len(data.Mangas.Nodes) == 0 {
		return nil, nil
	}
	return &data.Mangas.Nodes[0], nil
}
