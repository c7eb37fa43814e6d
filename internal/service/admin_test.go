package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
)

func TestAdminOverview(t *testing.T) {
	h := newHarness(t)
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "", testChapter("c1", 1, 1), testChapter("c2", 2, 2))
	h.importSerie(t, "abc")

	overview, err := h.admin().Overview(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.Catalog.Series)
	assert.Equal(t, 1, overview.Catalog.SerieSources)
	assert.Equal(t, 2, overview.Catalog.Chapters)
	assert.Len(t, overview.Queues, len(queue.Definitions))
	assert.Equal(t, 2, overview.Queues[queue.ChapterData].Waiting)
	assert.Equal(t, 1, overview.Queues[queue.Indexer].WaitingChildren)
}

func TestAdminFailedPages(t *testing.T) {
	h := newHarness(t)
	chapter := importedChapter(t, h)
	h.source.setPages("c1", h.images.URL+"/img/1.png", h.images.URL+"/flaky/2.png", h.images.URL+"/flaky/3.png")
	_, err := h.pages().FetchChapter(h.ctx, chapter.ID)
	require.NoError(t, err)
	admin := h.admin()

	stats, err := admin.FailedStats(h.ctx, chapter.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PartialChapters)
	assert.Equal(t, 2, stats.FailedPages)

	global, err := admin.FailedStats(h.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, stats, global)

	_, err = admin.FailedStats(h.ctx, "missing")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	queued, err := admin.RetryFailed(h.ctx, chapter.SeriesID)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
	job, err := h.broker.Get(h.ctx, queue.PageRetryJobID(chapter.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, job.State)
}

func TestAdminSourcesHealth(t *testing.T) {
	h := newHarness(t)
	trackSeries(t, h, "abc", "def")
	require.NoError(t, h.store.RecordCheckFailure(h.ctx, "mangadex", "def"))
	_, err := h.importer().Import(h.ctx, "mangadex", "new")
	require.NoError(t, err)

	health, err := h.admin().SourcesHealth(h.ctx)
	require.NoError(t, err)
	require.Len(t, health.Sources, 1)
	row := health.Sources[0]
	assert.Equal(t, "mangadex", row.SourceID)
	assert.True(t, row.Enabled)
	assert.Equal(t, 2, row.TotalSeries)
	assert.Equal(t, 1, row.FailingCount)
	assert.Equal(t, 1, row.Waiting)
	assert.Equal(t, HealthTotals{Sources: 1, Enabled: 1, TotalSeries: 2, FailingCount: 1, Waiting: 1}, health.Totals)
}

func TestAdminRefresh(t *testing.T) {
	h := newHarness(t)
	trackSeries(t, h, "abc")
	admin := h.admin()

	job, err := admin.RefreshSource(h.ctx, "mangadex")
	require.NoError(t, err)
	assert.Equal(t, queue.UpdateScheduler, job.Queue)
	p := decodePayload[queue.UpdateSchedulerPayload](t, job)
	assert.Equal(t, queue.JobFetchLatest, p.Type)
	assert.Equal(t, "mangadex", p.SourceID)

	_, err = admin.RefreshSource(h.ctx, "nowhere")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	series, err := h.store.ListSeries(h.ctx, 0)
	require.NoError(t, err)
	require.Len(t, series, 1)
	jobs, err := admin.RefreshSerie(h.ctx, series[0].ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.SerieInserterJobID("mangadex", "abc"), jobs[0].ID)

	_, err = admin.RefreshSerie(h.ctx, "missing")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestAdminAcknowledgeRemovals(t *testing.T) {
	h := newHarness(t)
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "", testChapter("c1", 1, 1), testChapter("c2", 2, 2))
	result := h.importSerie(t, "abc")
	h.source.addSerie("abc", "Blue Period", "", testChapter("c1", 1, 1))
	h.importSerie(t, "abc")

	chapters, err := h.store.ListChapters(h.ctx, result.SerieID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	kept, removed := chapters[0], chapters[1]
	require.NotNil(t, removed.SourceRemovedAt)
	admin := h.admin()

	_, err = admin.AcknowledgeRemovals(h.ctx, result.SerieID, nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = admin.AcknowledgeRemovals(h.ctx, result.SerieID, []string{kept.ID, removed.ID})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	n, err := admin.AcknowledgeRemovals(h.ctx, result.SerieID, []string{removed.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAdminFieldLocks(t *testing.T) {
	h := newHarness(t)
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "")
	result := h.importSerie(t, "abc")
	admin := h.admin()

	require.NoError(t, admin.LockField(h.ctx, result.SerieID, domain.LockTitle))
	require.NoError(t, admin.LockField(h.ctx, result.SerieID, domain.LockTitle))
	series, err := h.store.GetSeries(h.ctx, result.SerieID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LockedField{domain.LockTitle}, series.LockedFields)

	require.NoError(t, h.store.SetLockedFields(h.ctx, result.SerieID, []domain.LockedField{domain.LockTitle, domain.LockCover}))
	require.NoError(t, h.store.SetCustomCover(h.ctx, result.SerieID, "http://cdn.test/custom.webp"))

	require.NoError(t, admin.UnlockField(h.ctx, result.SerieID, domain.LockCover))
	series, err = h.store.GetSeries(h.ctx, result.SerieID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LockedField{domain.LockTitle}, series.LockedFields)
	assert.Nil(t, series.CustomCover)
	assert.NotEmpty(t, h.jobs(t, queue.Indexer, domain.JobWaiting))

	err = admin.LockField(h.ctx, "missing", domain.LockTitle)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
