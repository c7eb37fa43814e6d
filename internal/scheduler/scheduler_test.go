package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/queue"
)

type added struct {
	queue, name string
	payload     any
	opts        queue.JobOptions
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	calls []added
}

func (r *recordingEnqueuer) Add(_ context.Context, q, name string, payload any, opts queue.JobOptions) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, added{q, name, payload, opts})
	return &domain.Job{ID: opts.JobID, Queue: q, Name: name, State: domain.JobWaiting}, nil
}

func TestDefaults(t *testing.T) {
	cfg := config.Default().Scheduler
	cfg.RetryPagesCron = ""

	got := Defaults(cfg)
	require.Len(t, got, 2)

	assert.Equal(t, "fetch-latest", got[0].Name)
	assert.Equal(t, "*/30 * * * *", got[0].Spec)
	assert.Equal(t, queue.UpdateScheduler, got[0].Queue)
	assert.Equal(t, "fetch-latest-scheduler", got[0].JobID)
	assert.Equal(t, queue.UpdateSchedulerPayload{Type: queue.JobFetchLatest}, got[0].Payload)

	assert.Equal(t, "refresh-all-scheduler", got[1].JobID)
}

func TestRegister_InvalidSpec(t *testing.T) {
	s := New(&recordingEnqueuer{}, logger.Discard())
	err := s.Register(Repeatable{Name: "bad", Spec: "every tuesday"})
	assert.ErrorContains(t, err, "invalid schedule")
	assert.Empty(t, s.Entries())
}

func TestRegister_ReplacesByName(t *testing.T) {
	s := New(&recordingEnqueuer{}, logger.Discard())
	require.NoError(t, s.Register(Repeatable{Name: "a", Spec: "@hourly"}))
	require.NoError(t, s.Register(Repeatable{Name: "a", Spec: "@daily"}))
	require.NoError(t, s.Register(Repeatable{Name: "b", Spec: "*/5 * * * *"}))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "@daily", entries[0].Spec)

	s.Remove("a")
	assert.Len(t, s.Entries(), 1)
}

func TestTrigger(t *testing.T) {
	rec := &recordingEnqueuer{}
	s := New(rec, logger.Discard())
	for _, r := range Defaults(config.Default().Scheduler) {
		require.NoError(t, s.Register(r))
	}

	job, err := s.Trigger(context.Background(), "refresh-all")
	require.NoError(t, err)
	assert.Equal(t, "refresh-all-scheduler", job.ID)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, queue.UpdateScheduler, rec.calls[0].queue)
	assert.Equal(t, queue.JobRefreshAll, rec.calls[0].name)
	assert.Equal(t, "refresh-all-scheduler", rec.calls[0].opts.JobID)

	_, err = s.Trigger(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := New(&recordingEnqueuer{}, logger.Discard())
	require.NoError(t, s.Register(Repeatable{Name: "a", Spec: "@every 1h"}))

	s.Start()
	assert.True(t, s.IsRunning())
	assert.False(t, s.Entries()[0].Next.IsZero())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
