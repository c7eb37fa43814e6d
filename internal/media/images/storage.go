package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/storage"
)

// Stored is a processed image persisted to the object store.
type Stored struct {
	URL      string
	Key      string
	Quality  domain.ImageQuality
	Issues   []string
	Metadata *domain.PageMetadata
}

// KeyFunc builds the object key for a processed image extension.
type KeyFunc func(ext string) string

// Uploader downloads a source image, transcodes it and writes the result to
// the object store.
type Uploader struct {
	downloader *Downloader
	processor  *Processor
	store      storage.Store
	attempts   uint
	logger     *slog.Logger
}

// NewUploader wires the download, transcode and store steps.
func NewUploader(downloader *Downloader, processor *Processor, store storage.Store, logger *slog.Logger) *Uploader {
	return &Uploader{
		downloader: downloader,
		processor:  processor,
		store:      store,
		attempts:   downloader.attempts,
		logger:     logger,
	}
}

// Upload fetches sourceURL and stores it under key(ext). Errors wrapping
// ErrPermanent will fail the same way on every attempt.
func (u *Uploader) Upload(ctx context.Context, sourceURL string, headers http.Header, key KeyFunc) (*Stored, error) {
	data, err := u.downloader.Fetch(ctx, sourceURL, headers)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", sourceURL, err)
	}
	return u.Store(ctx, data, key)
}

// Store transcodes data and writes it under key(ext).
func (u *Uploader) Store(ctx context.Context, data []byte, key KeyFunc) (*Stored, error) {
	res, err := u.processor.Process(data)
	if err != nil {
		return nil, err
	}

	objectKey := key(res.Ext)
	url, err := retry.DoWithData(
		func() (string, error) { return u.store.Put(ctx, objectKey, res.Data, res.ContentType) },
		retry.Context(ctx),
		retry.Attempts(u.attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", objectKey, err)
	}

	if res.Quality != domain.QualityHealthy {
		u.logger.Debug("stored image with quality issues",
			"key", objectKey,
			"quality", res.Quality,
			"issues", res.Issues)
	}

	return &Stored{
		URL:      url,
		Key:      objectKey,
		Quality:  res.Quality,
		Issues:   res.Issues,
		Metadata: res.Metadata(),
	}, nil
}
