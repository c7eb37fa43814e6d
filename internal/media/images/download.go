package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/DokushoHQ/backends/internal/config"
)

const (
	// maxDownloadSize limits download size to prevent memory exhaustion.
	maxDownloadSize = 64 << 20

	// downloadTimeout bounds a single attempt.
	downloadTimeout = 60 * time.Second
)

// Downloader fetches remote images with retries.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	attempts   uint
	delay      time.Duration
	logger     *slog.Logger
}

// NewDownloader creates a downloader sending userAgent on every request.
func NewDownloader(cfg config.ImagesConfig, userAgent string, logger *slog.Logger) *Downloader {
	attempts := cfg.DownloadAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Downloader{
		httpClient: &http.Client{Timeout: downloadTimeout},
		userAgent:  userAgent,
		attempts:   uint(attempts),
		delay:      time.Second,
		logger:     logger,
	}
}

// Fetch downloads url. Client errors other than 408 and 429 are not retried
// and wrap ErrPermanent.
func (d *Downloader) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty image url", ErrPermanent)
	}

	data, err := retry.DoWithData(
		func() ([]byte, error) { return d.fetchOnce(ctx, url, headers) },
		retry.Context(ctx),
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Debug("retrying image download", "url", url, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: create request: %w", ErrPermanent, err))
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if d.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, retry.Unrecoverable(err)
		}
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if permanentStatus(resp.StatusCode) {
			return nil, retry.Unrecoverable(fmt.Errorf("%w: %w", ErrPermanent, err))
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDownloadSize {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: image exceeds %d bytes", ErrPermanent, maxDownloadSize))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

func permanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
