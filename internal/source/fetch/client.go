// Package fetch is the rate-limited HTTP client shared by catalog adapters.
// Every request waits on the limiter bucket of its source.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/ratelimit"
	"github.com/DokushoHQ/backends/internal/source"
)

const (
	// Unconfigured sources get one request per second.
	defaultRPS   = 1.0
	defaultBurst = 1

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Limit response size to 16MB
	maxBodySize = 16 * 1024 * 1024
)

// Client is a rate-limited HTTP client keyed by source id.
type Client struct {
	http      *http.Client
	limiter   *ratelimit.KeyedRateLimiter
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// New creates a client. A nil limiter gets a private one.
func New(cfg config.SourcesConfig, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.New(defaultRPS, defaultBurst)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{
		http:      &http.Client{},
		limiter:   limiter,
		timeout:   timeout,
		userAgent: ua,
		logger:    logger,
	}
}

// UserAgent is the header value sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Configure applies a source's declared rate limit.
func (c *Client) Configure(sourceID string, api source.APIInformation) {
	if api.RateLimitMax <= 0 || api.RateLimitDuration <= 0 {
		return
	}
	c.limiter.Configure(sourceID, api.RateLimitMax, api.RateLimitDuration)
}

// Request is one call to a catalog.
type Request struct {
	SourceID string
	Method   string
	URL      string
	Query    url.Values
	Headers  http.Header
	Body     []byte
	// Timeout overrides the client timeout when positive.
	Timeout time.Duration
}

// Do executes req after waiting for the source's rate limit. Non-2xx
// responses are returned as *source.FetchError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	if err := c.limiter.Wait(ctx, req.SourceID); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("source request",
		"source_id", req.SourceID,
		"method", method,
		"url", target,
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &source.FetchError{Source: req.SourceID, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &source.FetchError{Source: req.SourceID, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("source response rejected",
			"source_id", req.SourceID,
			"url", target,
			"status", resp.StatusCode,
		)
		return nil, source.StatusError(req.SourceID, target, resp.StatusCode)
	}
	return data, nil
}

// Get fetches rawURL with query parameters.
func (c *Client) Get(ctx context.Context, sourceID, rawURL string, query url.Values, headers http.Header) ([]byte, error) {
	return c.Do(ctx, Request{SourceID: sourceID, URL: rawURL, Query: query, Headers: headers})
}

// PostJSON sends payload as a JSON body.
func (c *Client) PostJSON(ctx context.Context, sourceID, rawURL string, payload any, headers http.Header) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.Do(ctx, Request{SourceID: sourceID, Method: http.MethodPost, URL: rawURL, Body: body, Headers: headers})
}

// PostForm sends form-encoded values.
func (c *Client) PostForm(ctx context.Context, sourceID, rawURL string, form url.Values, headers http.Header) ([]byte, error) {
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, Request{SourceID: sourceID, Method: http.MethodPost, URL: rawURL, Body: []byte(form.Encode()), Headers: h})
}
