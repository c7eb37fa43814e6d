package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupBroker(t *testing.T) (*Broker, *fakeClock) {
	t.Helper()

	s, err := store.NewInMemory(logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b, err := NewBroker(context.Background(), Options{
		Store:  s,
		Logger: logger.Discard(),
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return b, clock
}

func chapterPayload(id string) ChapterDataPayload {
	return ChapterDataPayload{SerieID: "s1", SourceID: "src", ChapterID: id, Type: JobChapterUpdate}
}

func TestAdd_ValidatesPayload(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	_, err := b.Add(ctx, ChapterData, JobChapterUpdate, ChapterDataPayload{SerieID: "s1"}, JobOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = b.Add(ctx, "nope", "x", chapterPayload("c1"), JobOptions{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAdd_AppliesQueueDefaults(t *testing.T) {
	b, clock := setupBroker(t)

	job, err := b.Add(context.Background(), PageRetry, JobPageRetry, PageRetryPayload{ChapterID: "c1"}, JobOptions{
		JobID: PageRetryJobID("c1"),
		Delay: 5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "page-retry-c1", job.ID)
	assert.Equal(t, domain.JobDelayed, job.State)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, 2*time.Second, job.Backoff.Delay)
	assert.Equal(t, clock.Now().Add(5*time.Second), job.RunAt)
}

func TestAdd_DeterministicIDDedupe(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()
	opts := JobOptions{JobID: PageRetryJobID("c1")}

	first, err := b.Add(ctx, PageRetry, JobPageRetry, PageRetryPayload{ChapterID: "c1"}, opts)
	require.NoError(t, err)

	second, err := b.Add(ctx, PageRetry, JobPageRetry, PageRetryPayload{ChapterID: "c1"}, opts)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	counts, err := b.Counts(ctx, PageRetry)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Waiting)

	// Once finished, the same id can be queued again.
	claimed, err := b.Claim(ctx, PageRetry)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, claimed, nil, time.Millisecond))

	third, err := b.Add(ctx, PageRetry, JobPageRetry, PageRetryPayload{ChapterID: "c1"}, opts)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, third.State)
	assert.Equal(t, 0, third.AttemptsMade)
}

func TestClaim_OldestFirst(t *testing.T) {
	b, clock := setupBroker(t)
	ctx := context.Background()

	a, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("a"), JobOptions{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("b"), JobOptions{})
	require.NoError(t, err)

	got, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, domain.JobActive, got.State)
	assert.Equal(t, 1, got.AttemptsMade)
	require.NotNil(t, got.StartedAt)
}

func TestClaim_EmptyAndPaused(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	got, err := b.Claim(ctx, Indexer)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = b.Add(ctx, Indexer, JobIndexUpdate, IndexerPayload{SerieID: "s1", Type: JobIndexUpdate}, JobOptions{})
	require.NoError(t, err)

	require.NoError(t, b.Pause(ctx, Indexer))
	got, err = b.Claim(ctx, Indexer)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, b.Resume(ctx, Indexer))
	got, err = b.Claim(ctx, Indexer)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestPause_Persisted(t *testing.T) {
	s, err := store.NewInMemory(logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	b, err := NewBroker(ctx, Options{Store: s})
	require.NoError(t, err)
	require.NoError(t, b.Pause(ctx, CoverUpdate))
	require.NoError(t, b.PauseAll(ctx))

	reopened, err := NewBroker(ctx, Options{Store: s})
	require.NoError(t, err)
	assert.True(t, reopened.IsPaused(Indexer))

	require.NoError(t, reopened.ResumeAll(ctx))
	assert.False(t, reopened.IsPaused(Indexer))
	assert.False(t, reopened.IsPaused(CoverUpdate))

	assert.Error(t, reopened.Pause(ctx, "unknown"))
}

func TestFail_RetryWithBackoffThenFail(t *testing.T) {
	b, clock := setupBroker(t)
	ctx := context.Background()
	cause := errors.New("source timed out")

	_, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("c1"), JobOptions{})
	require.NoError(t, err)

	// Attempt 1 fails: exponential 1s.
	job, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	retrying, err := b.Fail(ctx, job, cause, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, retrying)

	stored, err := b.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDelayed, stored.State)
	assert.Equal(t, clock.Now().Add(time.Second), stored.RunAt)
	assert.Equal(t, "source timed out", stored.FailedReason)

	got, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	assert.Nil(t, got, "delayed job must not be claimable")

	clock.Advance(time.Second)
	n, err := b.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Attempt 2 fails: 2s.
	job, err = b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	assert.Equal(t, 2, job.AttemptsMade)
	_, err = b.Fail(ctx, job, cause, time.Millisecond)
	require.NoError(t, err)
	stored, err = b.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(2*time.Second), stored.RunAt)

	clock.Advance(2 * time.Second)
	_, err = b.Promote(ctx)
	require.NoError(t, err)

	// Attempt 3 exhausts the budget.
	job, err = b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	retrying, err = b.Fail(ctx, job, cause, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, retrying)

	stored, err = b.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, stored.State)
	assert.NotNil(t, stored.FinishedAt)
}

func TestFail_Unrecoverable(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	_, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("c1"), JobOptions{})
	require.NoError(t, err)
	job, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)

	retrying, err := b.Fail(ctx, job, Unrecoverable(errors.New("chapter gone")), time.Millisecond)
	require.NoError(t, err)
	assert.False(t, retrying)

	stored, err := b.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, stored.State)
}

func insertFlow(t *testing.T, b *Broker, children ...string) *Flow {
	t.Helper()
	spec := FlowSpec{
		Parent: FlowJob{
			Queue:   SerieInserter,
			Name:    JobInsert,
			Payload: SerieInserterPayload{SourceID: "src", SourceSerieID: "x"},
		},
	}
	for _, c := range children {
		spec.Children = append(spec.Children, FlowJob{
			Queue: ChapterData, Name: JobChapterUpdate, Payload: chapterPayload(c),
		})
	}
	flow, err := b.AddFlow(context.Background(), spec)
	require.NoError(t, err)
	return flow
}

func TestAddFlow_ParentGatedOnChildren(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	flow := insertFlow(t, b, "c1", "c2")
	require.Len(t, flow.Children, 2)
	assert.Equal(t, domain.JobWaitingChildren, flow.Parent.State)
	assert.Equal(t, 2, flow.Parent.PendingChildren)
	assert.Equal(t, flow.Parent.ID, flow.Children[0].ParentID)

	parent, err := b.Claim(ctx, SerieInserter)
	require.NoError(t, err)
	assert.Nil(t, parent, "parent must wait for its children")

	first, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, first, nil, time.Millisecond))

	stored, err := b.Get(ctx, flow.Parent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaitingChildren, stored.State)
	assert.Equal(t, 1, stored.PendingChildren)

	// A terminally failed child still releases the parent.
	second, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	_, err = b.Fail(ctx, second, Unrecoverable(errors.New("boom")), time.Millisecond)
	require.NoError(t, err)

	stored, err = b.Get(ctx, flow.Parent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, stored.State)

	parent, err = b.Claim(ctx, SerieInserter)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, flow.Parent.ID, parent.ID)
}

func TestAddFlow_FailParentOnFailure(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	flow, err := b.AddFlow(ctx, FlowSpec{
		Parent: FlowJob{Queue: SerieInserter, Name: JobInsert, Payload: SerieInserterPayload{SourceID: "src", SourceSerieID: "x"}},
		Children: []FlowJob{{
			Queue: ChapterData, Name: JobChapterUpdate, Payload: chapterPayload("c1"),
			Opts: JobOptions{FailParentOnFailure: true},
		}},
	})
	require.NoError(t, err)

	child, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	_, err = b.Fail(ctx, child, Unrecoverable(errors.New("boom")), time.Millisecond)
	require.NoError(t, err)

	parent, err := b.Get(ctx, flow.Parent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, parent.State)
	assert.Contains(t, parent.FailedReason, "boom")
}

func TestAddFlow_NoChildrenRunsParent(t *testing.T) {
	b, _ := setupBroker(t)
	flow := insertFlow(t, b)
	assert.Equal(t, domain.JobWaiting, flow.Parent.State)
	assert.Zero(t, flow.Parent.PendingChildren)
}

func TestAddFlow_SkipsPendingDeterministicChild(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	_, err := b.Add(ctx, PageRetry, JobPageRetry, PageRetryPayload{ChapterID: "c1"}, JobOptions{JobID: PageRetryJobID("c1")})
	require.NoError(t, err)

	flow, err := b.AddFlow(ctx, FlowSpec{
		Parent: FlowJob{Queue: UpdateScheduler, Name: JobRetryFailedPages, Payload: UpdateSchedulerPayload{Type: JobRetryFailedPages}},
		Children: []FlowJob{
			{Queue: PageRetry, Name: JobPageRetry, Payload: PageRetryPayload{ChapterID: "c1"}, Opts: JobOptions{JobID: PageRetryJobID("c1")}},
			{Queue: PageRetry, Name: JobPageRetry, Payload: PageRetryPayload{ChapterID: "c2"}, Opts: JobOptions{JobID: PageRetryJobID("c2")}},
		},
	})
	require.NoError(t, err)

	require.Len(t, flow.Children, 1)
	assert.Equal(t, "page-retry-c2", flow.Children[0].ID)
	assert.Equal(t, []string{"page-retry-c2"}, flow.Parent.ChildIDs)
	assert.Equal(t, 1, flow.Parent.PendingChildren)
}

func TestWaitFlow_SlowChild(t *testing.T) {
	b, _ := setupBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	flow := insertFlow(t, b, "fast", "slow")

	var parentSeen atomic.Bool
	done := make(chan *domain.Job, 1)
	go func() {
		job, err := b.WaitFlow(ctx, flow.Parent.ID)
		if err == nil {
			parentSeen.Store(true)
			done <- job
		}
	}()

	fast, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	slow, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)

	require.NoError(t, b.Complete(ctx, fast, nil, time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, parentSeen.Load(), "parent released before the slow child finished")

	require.NoError(t, b.Complete(ctx, slow, nil, time.Millisecond))
	select {
	case job := <-done:
		assert.Equal(t, domain.JobWaiting, job.State)
	case <-ctx.Done():
		t.Fatal("parent was never released")
	}
}

func TestRemove(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, b.Remove(ctx, "nope"), domainerrors.ErrNotFound)
	})

	t.Run("active", func(t *testing.T) {
		_, err := b.Add(ctx, CoverUpdate, JobCoverSource, CoverUpdatePayload{Type: JobCoverSource, SerieSourceID: "ss1"}, JobOptions{})
		require.NoError(t, err)
		job, err := b.Claim(ctx, CoverUpdate)
		require.NoError(t, err)
		assert.ErrorIs(t, b.Remove(ctx, job.ID), domainerrors.ErrInvalidState)
	})

	t.Run("pending child releases parent", func(t *testing.T) {
		flow := insertFlow(t, b, "r1")
		require.NoError(t, b.Remove(ctx, flow.Children[0].ID))

		parent, err := b.Get(ctx, flow.Parent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobWaiting, parent.State)
	})

	t.Run("parent removes pending children", func(t *testing.T) {
		flow := insertFlow(t, b, "r2", "r3")
		require.NoError(t, b.Remove(ctx, flow.Parent.ID))

		for _, c := range flow.Children {
			_, err := b.Get(ctx, c.ID)
			assert.ErrorIs(t, err, domainerrors.ErrNotFound)
		}
	})
}

func TestRetry(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	job, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("c1"), JobOptions{})
	require.NoError(t, err)

	_, err = b.Retry(ctx, job.ID)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	claimed, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	_, err = b.Fail(ctx, claimed, Unrecoverable(errors.New("x")), time.Millisecond)
	require.NoError(t, err)

	n, err := b.RetryAllFailed(ctx, ChapterData)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := b.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobWaiting, stored.State)
	assert.Zero(t, stored.AttemptsMade)
	assert.Empty(t, stored.FailedReason)
}

func TestRecoverStalled(t *testing.T) {
	b, _ := setupBroker(t)
	ctx := context.Background()

	_, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("c1"), JobOptions{})
	require.NoError(t, err)
	_, err = b.Claim(ctx, ChapterData)
	require.NoError(t, err)

	n, err := b.RecoverStalled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := b.Counts(ctx, ChapterData)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Waiting)
	assert.Zero(t, counts.Active)
}

func TestClean(t *testing.T) {
	b, clock := setupBroker(t)
	ctx := context.Background()

	_, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload("c1"), JobOptions{})
	require.NoError(t, err)
	job, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, job, nil, time.Millisecond))

	n, err := b.Clean(ctx, ChapterData, domain.JobCompleted, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(8 * 24 * time.Hour)
	n, err = b.Clean(ctx, ChapterData, domain.JobCompleted, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = b.Clean(ctx, ChapterData, domain.JobWaiting, time.Hour)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestList_AcrossStates(t *testing.T) {
	b, clock := setupBroker(t)
	ctx := context.Background()

	for _, c := range []string{"a", "b", "c"} {
		_, err := b.Add(ctx, ChapterData, JobChapterUpdate, chapterPayload(c), JobOptions{})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	_, err := b.Claim(ctx, ChapterData)
	require.NoError(t, err)

	all, err := b.List(ctx, ChapterData, nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := b.List(ctx, ChapterData, []domain.JobState{domain.JobWaiting, domain.JobActive}, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.JobWaiting, page[0].State)

	_, err = b.List(ctx, "nope", nil, 0, 10)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestMetrics(t *testing.T) {
	s, err := store.NewInMemory(logger.Discard())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	b, err := NewBroker(ctx, Options{Store: s, Metrics: NewMetrics(reg)})
	require.NoError(t, err)

	_, err = b.Add(ctx, Indexer, JobIndexUpdate, IndexerPayload{SerieID: "s1", Type: JobIndexUpdate}, JobOptions{})
	require.NoError(t, err)
	job, err := b.Claim(ctx, Indexer)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, job, map[string]int{"docs": 1}, 10*time.Millisecond))

	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.finished.WithLabelValues(Indexer, "completed")))

	_, err = b.Counts(ctx, Indexer)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.inState.WithLabelValues(Indexer, "completed")))

	series, err := b.MetricsSeries(Indexer)
	require.NoError(t, err)
	require.Len(t, series, historyMinutes)
	assert.Equal(t, 1, series[historyMinutes-1].Completed)
}

func TestDecode(t *testing.T) {
	job := &domain.Job{ID: "j1", Queue: Indexer, Payload: []byte(`{"serie_id":"s1","type":"UPDATE"}`)}
	p, err := Decode[IndexerPayload](job)
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SerieID)

	job.Payload = []byte(`{`)
	_, err = Decode[IndexerPayload](job)
	assert.True(t, IsUnrecoverable(err))
}
