// Package scheduler fires repeatable jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/queue"
)

const enqueueTimeout = 30 * time.Second

// Enqueuer adds jobs to a queue.
type Enqueuer interface {
	Add(ctx context.Context, queue, name string, payload any, opts queue.JobOptions) (*domain.Job, error)
}

// Repeatable is a job enqueued on every tick of Spec. JobID keeps at most one
// pending instance: a tick that finds the previous one still queued is a no-op.
type Repeatable struct {
	Name    string
	Spec    string
	Queue   string
	JobName string
	JobID   string
	Payload any
}

// Entry describes a registered repeatable.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitzero"`
}

// CronScheduler manages repeatable jobs.
type CronScheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	enqueuer Enqueuer
	logger   *slog.Logger

	mutex   sync.RWMutex
	entries map[string]cron.EntryID
	jobs    map[string]Repeatable
	running bool
}

// New creates a scheduler that enqueues through q. Schedules are evaluated in UTC.
func New(q Enqueuer, logger *slog.Logger) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:     cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		parser:   parser,
		enqueuer: q,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
		jobs:     make(map[string]Repeatable),
	}
}

// Defaults returns the update-scheduler repeatables for cfg. Empty specs are skipped.
func Defaults(cfg config.SchedulerConfig) []Repeatable {
	all := []Repeatable{
		{Name: "fetch-latest", Spec: cfg.FetchLatestCron, JobName: queue.JobFetchLatest, JobID: "fetch-latest-scheduler"},
		{Name: "refresh-all", Spec: cfg.RefreshAllCron, JobName: queue.JobRefreshAll, JobID: "refresh-all-scheduler"},
		{Name: "retry-failed-pages", Spec: cfg.RetryPagesCron, JobName: queue.JobRetryFailedPages, JobID: "retry-failed-pages-scheduler"},
	}
	out := make([]Repeatable, 0, len(all))
	for _, r := range all {
		if r.Spec == "" {
			continue
		}
		r.Queue = queue.UpdateScheduler
		r.Payload = queue.UpdateSchedulerPayload{Type: r.JobName}
		out = append(out, r)
	}
	return out
}

// Register adds r, replacing any repeatable with the same name.
func (s *CronScheduler) Register(r Repeatable) error {
	schedule, err := s.parser.Parse(r.Spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", r.Spec, r.Name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if id, ok := s.entries[r.Name]; ok {
		s.cron.Remove(id)
	}
	s.entries[r.Name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		if err := s.fire(ctx, r); err != nil {
			s.logger.Error("failed to enqueue repeatable job", "name", r.Name, "error", err)
		}
	}))
	s.jobs[r.Name] = r
	return nil
}

// Remove unregisters the named repeatable.
func (s *CronScheduler) Remove(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
		delete(s.jobs, name)
	}
}

// Trigger enqueues the named repeatable immediately.
func (s *CronScheduler) Trigger(ctx context.Context, name string) (*domain.Job, error) {
	s.mutex.RLock()
	r, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown repeatable %q", name)
	}
	return s.enqueue(ctx, r)
}

func (s *CronScheduler) fire(ctx context.Context, r Repeatable) error {
	job, err := s.enqueue(ctx, r)
	if err != nil {
		return err
	}
	s.logger.Info("repeatable job fired", "name", r.Name, "job_id", job.ID, "state", job.State)
	return nil
}

func (s *CronScheduler) enqueue(ctx context.Context, r Repeatable) (*domain.Job, error) {
	return s.enqueuer.Add(ctx, r.Queue, r.JobName, r.Payload, queue.JobOptions{JobID: r.JobID})
}

// Entries lists the registered repeatables by name.
func (s *CronScheduler) Entries() []Entry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for name, id := range s.entries {
		e := s.cron.Entry(id)
		out = append(out, Entry{Name: name, Spec: s.jobs[name].Spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start starts the scheduler.
func (s *CronScheduler) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		s.cron.Start()
		s.running = true
	}
}

// Stop stops the scheduler and waits for running enqueues.
func (s *CronScheduler) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.running = false
	s.mutex.Unlock()

	<-s.cron.Stop().Done()
}

// IsRunning returns whether the scheduler is running.
func (s *CronScheduler) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}
