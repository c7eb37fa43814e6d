// Package byparr is a client for the byparr browser-automation proxy, used to
// scrape catalogs that sit behind bot protection.
package byparr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

// DefaultMaxTimeout bounds how long the proxy may spend solving a page.
const DefaultMaxTimeout = 60 * time.Second

// ErrProxy is a request the proxy reported as failed.
var ErrProxy = errors.New("byparr: proxy error")

// Cookie is a browser cookie returned by the proxy.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Solution is the page as the browser saw it.
type Solution struct {
	URL       string            `json:"url"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Response  string            `json:"response"`
	Cookies   []Cookie          `json:"cookies"`
	UserAgent string            `json:"userAgent"`
	JSResult  json.RawMessage   `json:"jsResult,omitempty"`
}

type response struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Solution Solution `json:"solution"`
}

type command struct {
	Cmd        string   `json:"cmd"`
	URL        string   `json:"url"`
	PostData   string   `json:"postData,omitempty"`
	MaxTimeout int64    `json:"maxTimeout"`
	Session    string   `json:"session,omitempty"`
	Cookies    []Cookie `json:"cookies,omitempty"`
	JS         string   `json:"js,omitempty"`
	InitJS     string   `json:"init_js,omitempty"`
}

// Options tune one proxied request.
type Options struct {
	MaxTimeout time.Duration
	Session    string
	Cookies    []Cookie
	// JS runs after load; its value is returned in Solution.JSResult.
	JS string
	// InitJS runs before any page script.
	InitJS string
}

// Client sends commands to a byparr instance. Requests share the rate limit
// of the source they are made for.
type Client struct {
	fetch   *fetch.Client
	baseURL string
}

// New creates a client for the proxy at baseURL.
func New(fc *fetch.Client, baseURL string) *Client {
	return &Client{fetch: fc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Get loads rawURL in the proxy browser.
func (c *Client) Get(ctx context.Context, sourceID, rawURL string, opts Options) (*Solution, error) {
	return c.send(ctx, sourceID, command{
		Cmd:     "request.get",
		URL:     rawURL,
		Session: opts.Session,
		Cookies: opts.Cookies,
		JS:      opts.JS,
		InitJS:  opts.InitJS,
	}, opts.MaxTimeout)
}

// Post submits form-encoded postData to rawURL in the proxy browser.
func (c *Client) Post(ctx context.Context, sourceID, rawURL, postData string, opts Options) (*Solution, error) {
	return c.send(ctx, sourceID, command{
		Cmd:      "request.post",
		URL:      rawURL,
		PostData: postData,
		Session:  opts.Session,
		Cookies:  opts.Cookies,
		JS:       opts.JS,
	}, opts.MaxTimeout)
}

func (c *Client) send(ctx context.Context, sourceID string, cmd command, maxTimeout time.Duration) (*Solution, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: no proxy url configured", ErrProxy)
	}
	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxTimeout
	}
	cmd.MaxTimeout = maxTimeout.Milliseconds()

	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode byparr command: %w", err)
	}
	data, err := c.fetch.Do(ctx, fetch.Request{
		SourceID: sourceID,
		Method:   http.MethodPost,
		URL:      c.baseURL + "/v1",
		Body:     body,
		Timeout:  maxTimeout + 15*time.Second,
	})
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, source.Parse("byparr response: %v", err)
	}
	if resp.Status != "ok" {
		return nil, &source.FetchError{Source: sourceID, URL: cmd.URL, Err: fmt.Errorf("%w: %s", ErrProxy, resp.Message)}
	}
	if resp.Solution.Status >= 400 {
		return nil, source.StatusError(sourceID, cmd.URL, resp.Solution.Status)
	}
	return &resp.Solution, nil
}
