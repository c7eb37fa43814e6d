package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/queue"
)

// importedChapter imports a one-chapter series and returns the chapter.
func importedChapter(t *testing.T, h *harness) *domain.Chapter {
	t.Helper()
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "", testChapter("c1", 1, 1))
	result := h.importSerie(t, "abc")
	chapters, err := h.store.ListChapters(h.ctx, result.SerieID)
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	return chapters[0]
}

func (h *harness) chapterStatus(t *testing.T, chapterID string) domain.FetchStatus {
	t.Helper()
	chapter, err := h.store.GetChapter(h.ctx, chapterID)
	require.NoError(t, err)
	return chapter.PageFetchStatus
}

func TestFetchChapter_AllPagesUploaded(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1", h.images.URL+"/img/1.png", h.images.URL+"/img/2.png", h.images.URL+"/img/3.png")

	result, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSuccess, result.Status)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 3, result.Uploaded)
	assert.Equal(t, domain.FetchSuccess, h.chapterStatus(t, chapter.ID))

	pages, err := h.store.ListPages(h.ctx, chapter.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		require.NotNil(t, p.URL)
		assert.True(t, strings.HasPrefix(*p.URL, "http://cdn.test/"), *p.URL)
		require.NotNil(t, p.Quality)
		require.NotNil(t, p.Metadata)
	}
}

func TestFetchChapter_RefetchReplacesPages(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1", h.images.URL+"/img/1.png", h.images.URL+"/img/2.png", h.images.URL+"/img/3.png")
	_, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)

	h.source.setPages("c1", h.images.URL+"/img/1.png")
	result, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)

	pages, err := h.store.ListPages(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestFetchChapter_Classification(t *testing.T) {
	tests := []struct {
		name   string
		paths  []string
		status domain.FetchStatus
		fails  bool
	}{
		{name: "partial", paths: []string{"/img/1.png", "/flaky/2.png"}, status: domain.FetchPartial},
		{name: "incomplete", paths: []string{"/img/1.png", "/gone/2.png"}, status: domain.FetchIncomplete},
		{name: "permanently failed", paths: []string{"/gone/1.png", "/gone/2.png"}, status: domain.FetchPermanentlyFailed},
		{name: "failed", paths: []string{"/flaky/1.png", "/flaky/2.png"}, status: domain.FetchFailed, fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			chapter := importedChapter(t, h)
			urls := make([]string, len(tt.paths))
			for i, p := range tt.paths {
				urls[i] = h.images.URL + p
			}
			h.source.setPages("c1", urls...)

			result, err := h.pages().FetchChapter(h.ctx, chapter.ID)
			if tt.fails {
				require.Error(t, err)
				assert.False(t, queue.IsUnrecoverable(err))
			} else {
				require.NoError(t, err)
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.status, h.chapterStatus(t, chapter.ID))
		})
	}
}

func TestFetchChapter_NoPagesDisablesChapter(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1")

	result, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSuccess, result.Status)

	got, err := h.store.GetChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestFetchChapter_PageListErrorMarksFailed(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)

	_, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.Error(t, err)
	assert.False(t, queue.IsUnrecoverable(err))
	assert.Equal(t, domain.FetchFailed, h.chapterStatus(t, chapter.ID))
}

func TestFetchChapter_UnknownChapter(t *testing.T) {
	h := newHarness(t)

	_, err := h.pages().HandleChapter(h.ctx, jobFor(t, queue.ChapterData, queue.ChapterDataPayload{
		SerieID:   "s",
		SourceID:  "mangadex",
		ChapterID: "missing",
		Type:      queue.JobChapterUpdate,
	}))
	require.Error(t, err)
	assert.True(t, queue.IsUnrecoverable(err))
}

func TestRetryChapter_RecoversFlakyPages(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1", h.images.URL+"/img/1.png", h.images.URL+"/flaky/2.png")

	result, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	require.Equal(t, domain.FetchPartial, result.Status)

	retryable, err := h.store.RetryablePages(h.ctx, chapter.ID)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, 1, retryable[0].Index)

	h.images.heal()
	result, err = h.pages().HandleRetry(h.ctx, jobFor(t, queue.PageRetry, queue.PageRetryPayload{ChapterID: chapter.ID}))
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSuccess, result.(*ChapterResult).Status)
	assert.Equal(t, domain.FetchSuccess, h.chapterStatus(t, chapter.ID))

	retryable, err = h.store.RetryablePages(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Empty(t, retryable)
}

func TestRetryChapter_NothingToRetry(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1", h.images.URL+"/img/1.png")
	_, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)

	result, err := h.pages().RetryChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchSuccess, result.Status)
	assert.Zero(t, result.Pages)
}
