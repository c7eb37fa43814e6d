package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/storage"
)

func newTestDownloader(attempts int) *Downloader {
	d := NewDownloader(config.ImagesConfig{DownloadAttempts: attempts}, "dokusho-test", logger.Discard())
	d.delay = time.Millisecond
	return d
}

func TestDownloader_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dokusho-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://weebcentral.com/", r.Header.Get("Referer"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	t.Cleanup(srv.Close)

	headers := http.Header{"Referer": []string{"https://weebcentral.com/"}}
	data, err := newTestDownloader(5).Fetch(context.Background(), srv.URL+"/p.png", headers)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDownloader_StatusHandling(t *testing.T) {
	tests := []struct {
		status    int
		wantCalls int32
		permanent bool
	}{
		{status: http.StatusNotFound, wantCalls: 1, permanent: true},
		{status: http.StatusForbidden, wantCalls: 1, permanent: true},
		{status: http.StatusTooManyRequests, wantCalls: 3},
		{status: http.StatusBadGateway, wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			_, err := newTestDownloader(3).Fetch(context.Background(), srv.URL, nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.permanent {
				assert.ErrorIs(t, err, ErrPermanent)
			} else {
				assert.NotErrorIs(t, err, ErrPermanent)
			}
		})
	}
}

func TestDownloader_EmptyURL(t *testing.T) {
	_, err := newTestDownloader(1).Fetch(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestUploader_Upload(t *testing.T) {
	page := encodePNG(t, patterned(800, 1200))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(page)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store, err := storage.NewLocal(dir, "https://cdn.example", logger.Discard())
	require.NoError(t, err)

	u := NewUploader(newTestDownloader(2), newTestProcessor(10<<20), store, logger.Discard())
	ctx := context.Background()

	stored, err := u.Upload(ctx, srv.URL+"/0.png", nil, func(ext string) string {
		return storage.PageKey("s1", "c1", 0, ext)
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/s1/chapters/c1/page-0.webp", stored.URL)
	assert.Equal(t, "s1/chapters/c1/page-0.webp", stored.Key)
	assert.Equal(t, domain.QualityHealthy, stored.Quality)
	require.NotNil(t, stored.Metadata)
	assert.Equal(t, 800, stored.Metadata.Width)
	assert.Equal(t, "image/webp", stored.Metadata.ContentType)

	info, err := os.Stat(filepath.Join(dir, "s1", "chapters", "c1", "page-0.webp"))
	require.NoError(t, err)
	assert.Equal(t, stored.Metadata.Size, info.Size())

	_, err = u.Upload(ctx, srv.URL+"/missing.png", nil, func(ext string) string {
		return storage.PageKey("s1", "c1", 1, ext)
	})
	assert.ErrorIs(t, err, ErrPermanent)
}
