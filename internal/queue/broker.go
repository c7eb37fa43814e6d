package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/id"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/validation"
)

const pausedMetaKey = "queue:paused"

// farFuture selects every job of a state regardless of its order time.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// JobOptions tunes one enqueued job. Zero values fall back to the queue definition.
type JobOptions struct {
	// JobID makes the job deterministic: adding an id that is still pending
	// returns the existing job, adding one that already finished replaces it.
	JobID    string
	Delay    time.Duration
	Attempts int
	Backoff  *domain.Backoff
	// FailParentOnFailure makes a terminal failure of this child fail its
	// flow parent instead of releasing it.
	FailParentOnFailure bool
}

// FlowJob describes one job of a flow.
type FlowJob struct {
	Queue   string
	Name    string
	Payload any
	Opts    JobOptions
}

// FlowSpec is a parent job gated on a set of children.
type FlowSpec struct {
	Parent   FlowJob
	Children []FlowJob
}

// Flow is the persisted result of AddFlow.
type Flow struct {
	Parent   *domain.Job
	Children []*domain.Job
}

// Options configures a Broker.
type Options struct {
	Store     *store.Store
	Logger    *slog.Logger
	Validator *validation.Validator
	Metrics   *Metrics

	PromoteInterval    time.Duration
	CompletedRetention time.Duration
	FailedRetention    time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type pausedState struct {
	All    bool     `json:"all"`
	Queues []string `json:"queues"`
}

// Broker owns every queue: it persists jobs, hands them to workers and
// enforces the flow barrier between parents and children.
type Broker struct {
	store     *store.Store
	logger    *slog.Logger
	validator *validation.Validator
	metrics   *Metrics
	history   *history
	now       func() time.Time

	promoteInterval    time.Duration
	completedRetention time.Duration
	failedRetention    time.Duration

	mu        sync.Mutex
	paused    pausedState
	notify    map[string]chan struct{}
	changedCh chan struct{}
	handlers  map[string]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBroker creates a broker and restores the persisted pause state.
func NewBroker(ctx context.Context, opts Options) (*Broker, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PromoteInterval <= 0 {
		opts.PromoteInterval = time.Second
	}

	b := &Broker{
		store:              opts.Store,
		logger:             opts.Logger,
		validator:          opts.Validator,
		metrics:            opts.Metrics,
		history:            newHistory(),
		now:                opts.Now,
		promoteInterval:    opts.PromoteInterval,
		completedRetention: opts.CompletedRetention,
		failedRetention:    opts.FailedRetention,
		notify:             make(map[string]chan struct{}, len(Definitions)),
		changedCh:          make(chan struct{}),
		handlers:           make(map[string]Handler),
	}
	for _, d := range Definitions {
		b.notify[d.Name] = make(chan struct{}, 1)
	}

	err := b.store.GetMeta(ctx, pausedMetaKey, &b.paused)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load paused queues: %w", err)
	}
	return b, nil
}

func (b *Broker) newJob(queue, name string, payload any, opts JobOptions, now time.Time) (*domain.Job, error) {
	def, err := Lookup(queue)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	if err := b.validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%s payload: %w", queue, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", queue, err)
	}

	jobID := opts.JobID
	if jobID == "" {
		if jobID, err = id.Generate("job"); err != nil {
			return nil, err
		}
	}

	attempts := def.Attempts
	if opts.Attempts > 0 {
		attempts = opts.Attempts
	}
	backoff := def.Backoff
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}

	state := domain.JobWaiting
	if opts.Delay > 0 {
		state = domain.JobDelayed
	}

	return &domain.Job{
		ID:                  jobID,
		Queue:               queue,
		Name:                name,
		Payload:             body,
		State:               state,
		MaxAttempts:         max(attempts, 1),
		Backoff:             backoff,
		RunAt:               now.Add(opts.Delay),
		FailParentOnFailure: opts.FailParentOnFailure,
		CreatedAt:           now,
	}, nil
}

// Add enqueues one job.
func (b *Broker) Add(ctx context.Context, queue, name string, payload any, opts JobOptions) (*domain.Job, error) {
	job, err := b.newJob(queue, name, payload, opts, b.now())
	if err != nil {
		return nil, err
	}

	var out *domain.Job
	err = b.store.Update(ctx, func(tx *store.Tx) error {
		out = job
		existing, err := b.reuse(tx, job.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		return b.store.Jobs.CreateIn(tx, job.ID, job)
	})
	if err != nil {
		return nil, fmt.Errorf("add %s job: %w", queue, err)
	}

	if out == job {
		b.logger.Debug("job added", "queue", queue, "job_id", job.ID, "name", name, "state", job.State)
		b.wake(queue)
	} else {
		b.logger.Debug("job already pending", "queue", queue, "job_id", out.ID, "state", out.State)
	}
	return out, nil
}

// reuse returns the stored job with jobID when it is still pending. A finished
// job with that id is deleted so the id can be reused.
func (b *Broker) reuse(tx *store.Tx, jobID string) (*domain.Job, error) {
	existing, err := b.store.Jobs.GetIn(tx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !existing.State.IsTerminal() {
		return existing, nil
	}
	return nil, b.store.Jobs.DeleteIn(tx, jobID)
}

// AddFlow enqueues a parent and its children atomically. The parent is held
// in waiting-children until every attached child reaches a terminal state.
// A child whose deterministic id is still pending elsewhere is not attached.
func (b *Broker) AddFlow(ctx context.Context, spec FlowSpec) (*Flow, error) {
	now := b.now()

	parent, err := b.newJob(spec.Parent.Queue, spec.Parent.Name, spec.Parent.Payload, spec.Parent.Opts, now)
	if err != nil {
		return nil, err
	}

	children := make([]*domain.Job, 0, len(spec.Children))
	for _, c := range spec.Children {
		child, err := b.newJob(c.Queue, c.Name, c.Payload, c.Opts, now)
		if err != nil {
			return nil, err
		}
		child.ParentID = parent.ID
		children = append(children, child)
	}

	var flow *Flow
	err = b.store.Update(ctx, func(tx *store.Tx) error {
		p := *parent
		p.ChildIDs = nil
		flow = &Flow{Parent: &p}

		existing, err := b.reuse(tx, p.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainerrors.Conflictf("flow parent %s is still %s", p.ID, existing.State)
		}

		for _, child := range children {
			pending, err := b.reuse(tx, child.ID)
			if err != nil {
				return err
			}
			if pending != nil {
				continue
			}
			if err := b.store.Jobs.CreateIn(tx, child.ID, child); err != nil {
				return err
			}
			p.ChildIDs = append(p.ChildIDs, child.ID)
			flow.Children = append(flow.Children, child)
		}

		p.PendingChildren = len(p.ChildIDs)
		if p.PendingChildren > 0 {
			p.State = domain.JobWaitingChildren
		}
		return b.store.Jobs.CreateIn(tx, p.ID, &p)
	})
	if err != nil {
		return nil, fmt.Errorf("add flow: %w", err)
	}

	b.logger.Debug("flow added",
		"queue", parent.Queue, "parent_id", parent.ID, "children", len(flow.Children))
	for _, c := range flow.Children {
		b.wake(c.Queue)
	}
	b.wake(parent.Queue)
	return flow, nil
}

// Claim moves the oldest due waiting job of queue to active and returns it.
// It returns nil when the queue is paused or empty.
func (b *Broker) Claim(ctx context.Context, queue string) (*domain.Job, error) {
	if b.IsPaused(queue) {
		return nil, nil
	}
	now := b.now()

	var claimed *domain.Job
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		claimed = nil
		due, err := b.store.DueJobsIn(tx, queue, domain.JobWaiting, farFuture, 1)
		if err != nil || len(due) == 0 {
			return err
		}
		job := due[0]
		job.State = domain.JobActive
		job.StartedAt = &now
		job.AttemptsMade++
		if err := b.store.Jobs.UpdateIn(tx, job.ID, job); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s job: %w", queue, err)
	}
	return claimed, nil
}

// Complete marks an active job completed and releases its flow parent when
// it was the last pending child.
func (b *Broker) Complete(ctx context.Context, job *domain.Job, result any, took time.Duration) error {
	now := b.now()
	var body json.RawMessage
	if result != nil {
		var err error
		if body, err = json.Marshal(result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}

	var released string
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		released = ""
		cur, err := b.store.Jobs.GetIn(tx, job.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cur.State = domain.JobCompleted
		cur.FinishedAt = &now
		cur.Result = body
		cur.FailedReason = ""
		if err := b.store.Jobs.UpdateIn(tx, cur.ID, cur); err != nil {
			return err
		}
		if cur.ParentID == "" {
			return nil
		}
		released, err = b.releaseParent(tx, cur.ParentID, false, false, "", now)
		return err
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	b.metrics.observe(job.Queue, "completed", took)
	b.history.record(job.Queue, false, now)
	if released != "" {
		b.wake(released)
	}
	b.broadcast()
	return nil
}

// Fail records a failed attempt. The job is rescheduled with its backoff
// unless attempts are exhausted or the error is unrecoverable, in which case
// it becomes failed and its flow parent is released (or failed).
func (b *Broker) Fail(ctx context.Context, job *domain.Job, cause error, took time.Duration) (retrying bool, err error) {
	now := b.now()
	reason := cause.Error()

	var (
		released string
		retryAt  time.Time
	)
	err = b.store.Update(ctx, func(tx *store.Tx) error {
		released, retrying = "", false
		cur, err := b.store.Jobs.GetIn(tx, job.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cur.FailedReason = reason

		if !IsUnrecoverable(cause) && cur.AttemptsMade < cur.MaxAttempts {
			delay := cur.Backoff.Next(cur.AttemptsMade)
			cur.RunAt = now.Add(delay)
			cur.State = domain.JobWaiting
			if delay > 0 {
				cur.State = domain.JobDelayed
			}
			retrying, retryAt = true, cur.RunAt
			return b.store.Jobs.UpdateIn(tx, cur.ID, cur)
		}

		cur.State = domain.JobFailed
		cur.FinishedAt = &now
		if err := b.store.Jobs.UpdateIn(tx, cur.ID, cur); err != nil {
			return err
		}
		if cur.ParentID == "" {
			return nil
		}
		released, err = b.releaseParent(tx, cur.ParentID, true, cur.FailParentOnFailure, reason, now)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	if retrying {
		b.metrics.observe(job.Queue, "retried", took)
		b.logger.Debug("job scheduled for retry", "queue", job.Queue, "job_id", job.ID, "run_at", retryAt)
		b.wake(job.Queue)
		return true, nil
	}

	b.metrics.observe(job.Queue, "failed", took)
	b.history.record(job.Queue, true, now)
	if released != "" {
		b.wake(released)
	}
	b.broadcast()
	return false, nil
}

// releaseParent accounts for one child reaching a terminal state. It returns
// the parent's queue when the parent left waiting-children.
func (b *Broker) releaseParent(tx *store.Tx, parentID string, childFailed, failParent bool, reason string, now time.Time) (string, error) {
	parent, err := b.store.Jobs.GetIn(tx, parentID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if parent.State != domain.JobWaitingChildren {
		return "", nil
	}

	if childFailed && failParent {
		parent.State = domain.JobFailed
		parent.FailedReason = "child job failed: " + reason
		parent.FinishedAt = &now
		parent.PendingChildren = 0
		return parent.Queue, b.store.Jobs.UpdateIn(tx, parent.ID, parent)
	}

	parent.PendingChildren--
	if parent.PendingChildren > 0 {
		return "", b.store.Jobs.UpdateIn(tx, parent.ID, parent)
	}

	parent.PendingChildren = 0
	parent.State = domain.JobWaiting
	if parent.RunAt.After(now) {
		parent.State = domain.JobDelayed
	}
	return parent.Queue, b.store.Jobs.UpdateIn(tx, parent.ID, parent)
}

// Promote moves delayed jobs whose run-at has passed to waiting.
func (b *Broker) Promote(ctx context.Context) (int, error) {
	now := b.now()
	total := 0
	for _, def := range Definitions {
		n := 0
		err := b.store.Update(ctx, func(tx *store.Tx) error {
			n = 0
			due, err := b.store.DueJobsIn(tx, def.Name, domain.JobDelayed, now, 500)
			if err != nil {
				return err
			}
			for _, job := range due {
				job.State = domain.JobWaiting
				if err := b.store.Jobs.UpdateIn(tx, job.ID, job); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("promote %s: %w", def.Name, err)
		}
		if n > 0 {
			b.wake(def.Name)
		}
		total += n
	}
	return total, nil
}

// RecoverStalled returns jobs left active by a previous process to waiting.
func (b *Broker) RecoverStalled(ctx context.Context) (int, error) {
	total := 0
	for _, def := range Definitions {
		n := 0
		err := b.store.Update(ctx, func(tx *store.Tx) error {
			n = 0
			active, err := b.store.DueJobsIn(tx, def.Name, domain.JobActive, farFuture, 0)
			if err != nil {
				return err
			}
			for _, job := range active {
				job.State = domain.JobWaiting
				job.StartedAt = nil
				if err := b.store.Jobs.UpdateIn(tx, job.ID, job); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("recover stalled %s: %w", def.Name, err)
		}
		if n > 0 {
			b.logger.Warn("recovered stalled jobs", "queue", def.Name, "count", n)
		}
		total += n
	}
	return total, nil
}

// Clean deletes terminal jobs of queue that finished more than olderThan ago.
func (b *Broker) Clean(ctx context.Context, queue string, state domain.JobState, olderThan time.Duration) (int, error) {
	if !state.IsTerminal() {
		return 0, domainerrors.Validationf("only completed or failed jobs can be cleaned, got %s", state)
	}
	cutoff := b.now().Add(-olderThan)

	n := 0
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		n = 0
		old, err := b.store.DueJobsIn(tx, queue, state, cutoff, 1000)
		if err != nil {
			return err
		}
		for _, job := range old {
			if err := b.store.Jobs.DeleteIn(tx, job.ID); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Get returns a job by id.
func (b *Broker) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := b.store.Jobs.Get(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("job %s not found", jobID)
	}
	return job, err
}

// List pages through the jobs of queue in the given states (all states when
// empty), in state order then oldest first.
func (b *Broker) List(ctx context.Context, queue string, states []domain.JobState, offset, limit int) ([]*domain.Job, error) {
	if _, err := Lookup(queue); err != nil {
		return nil, domainerrors.NotFound(err.Error())
	}
	if len(states) == 0 {
		states = domain.AllJobStates
	}
	if limit <= 0 {
		limit = 50
	}

	out := make([]*domain.Job, 0, limit)
	for _, state := range states {
		n, err := b.store.CountJobs(ctx, queue, state)
		if err != nil {
			return nil, err
		}
		if offset >= n {
			offset -= n
			continue
		}
		page, err := b.store.JobsByState(ctx, queue, state, offset, limit-len(out))
		if err != nil {
			return nil, err
		}
		offset = 0
		out = append(out, page...)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Remove deletes a job that is not currently running. Removing a flow parent
// also removes its pending children. Removing a pending child counts as that
// child finishing, so the parent is never stranded.
func (b *Broker) Remove(ctx context.Context, jobID string) error {
	now := b.now()
	var released string
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		released = ""
		job, err := b.store.Jobs.GetIn(tx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFoundf("job %s not found", jobID)
		}
		if err != nil {
			return err
		}
		if job.State == domain.JobActive {
			return domainerrors.InvalidStatef("job %s is active and cannot be removed", jobID)
		}

		if job.State == domain.JobWaitingChildren {
			for _, childID := range job.ChildIDs {
				child, err := b.store.Jobs.GetIn(tx, childID)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if child.State == domain.JobActive || child.State.IsTerminal() {
					continue
				}
				if err := b.store.Jobs.DeleteIn(tx, childID); err != nil {
					return err
				}
			}
		}

		if job.ParentID != "" && !job.State.IsTerminal() {
			if released, err = b.releaseParent(tx, job.ParentID, false, false, "", now); err != nil {
				return err
			}
		}
		return b.store.Jobs.DeleteIn(tx, jobID)
	})
	if err != nil {
		return err
	}

	b.logger.Info("job removed", "job_id", jobID)
	if released != "" {
		b.wake(released)
	}
	b.broadcast()
	return nil
}

// Retry requeues a finished job with a fresh attempt budget.
func (b *Broker) Retry(ctx context.Context, jobID string) (*domain.Job, error) {
	now := b.now()
	var out *domain.Job
	err := b.store.Update(ctx, func(tx *store.Tx) error {
		job, err := b.store.Jobs.GetIn(tx, jobID)
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFoundf("job %s not found", jobID)
		}
		if err != nil {
			return err
		}
		if !job.State.IsTerminal() {
			return domainerrors.InvalidStatef("job %s is %s, only finished jobs can be retried", jobID, job.State)
		}
		job.State = domain.JobWaiting
		job.AttemptsMade = 0
		job.RunAt = now
		job.StartedAt = nil
		job.FinishedAt = nil
		job.FailedReason = ""
		job.Result = nil
		out = job
		return b.store.Jobs.UpdateIn(tx, job.ID, job)
	})
	if err != nil {
		return nil, err
	}
	b.wake(out.Queue)
	return out, nil
}

// RetryAllFailed requeues every failed job of queue.
func (b *Broker) RetryAllFailed(ctx context.Context, queue string) (int, error) {
	failed, err := b.store.JobsByState(ctx, queue, domain.JobFailed, 0, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range failed {
		if _, err := b.Retry(ctx, job.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Pause stops workers of queue from claiming new jobs. Running jobs finish.
func (b *Broker) Pause(ctx context.Context, queue string) error {
	if _, err := Lookup(queue); err != nil {
		return domainerrors.NotFound(err.Error())
	}
	return b.updatePaused(ctx, func(p *pausedState) {
		if !slices.Contains(p.Queues, queue) {
			p.Queues = append(p.Queues, queue)
		}
	})
}

// Resume lets workers of queue claim jobs again.
func (b *Broker) Resume(ctx context.Context, queue string) error {
	if _, err := Lookup(queue); err != nil {
		return domainerrors.NotFound(err.Error())
	}
	if err := b.updatePaused(ctx, func(p *pausedState) {
		p.Queues = slices.DeleteFunc(p.Queues, func(q string) bool { return q == queue })
	}); err != nil {
		return err
	}
	b.wake(queue)
	return nil
}

// PauseAll pauses every queue.
func (b *Broker) PauseAll(ctx context.Context) error {
	return b.updatePaused(ctx, func(p *pausedState) { p.All = true })
}

// ResumeAll lifts the global pause and every per-queue pause.
func (b *Broker) ResumeAll(ctx context.Context) error {
	if err := b.updatePaused(ctx, func(p *pausedState) { *p = pausedState{} }); err != nil {
		return err
	}
	for _, d := range Definitions {
		b.wake(d.Name)
	}
	return nil
}

func (b *Broker) updatePaused(ctx context.Context, mutate func(*pausedState)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := pausedState{All: b.paused.All, Queues: slices.Clone(b.paused.Queues)}
	mutate(&next)
	if err := b.store.SetMeta(ctx, pausedMetaKey, next); err != nil {
		return fmt.Errorf("persist paused queues: %w", err)
	}
	b.paused = next
	return nil
}

// IsPaused reports whether queue is paused directly or globally.
func (b *Broker) IsPaused(queue string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused.All || slices.Contains(b.paused.Queues, queue)
}

// Counts returns the per-state tally of queue and refreshes its gauges.
func (b *Broker) Counts(ctx context.Context, queue string) (domain.JobCounts, error) {
	if _, err := Lookup(queue); err != nil {
		return domain.JobCounts{}, domainerrors.NotFound(err.Error())
	}

	counts := domain.JobCounts{Paused: b.IsPaused(queue)}
	targets := map[domain.JobState]*int{
		domain.JobWaiting:         &counts.Waiting,
		domain.JobActive:          &counts.Active,
		domain.JobCompleted:       &counts.Completed,
		domain.JobFailed:          &counts.Failed,
		domain.JobDelayed:         &counts.Delayed,
		domain.JobWaitingChildren: &counts.WaitingChildren,
	}
	for state, target := range targets {
		n, err := b.store.CountJobs(ctx, queue, state)
		if err != nil {
			return domain.JobCounts{}, fmt.Errorf("count %s %s: %w", queue, state, err)
		}
		*target = n
	}
	b.metrics.setCounts(queue, counts)
	return counts, nil
}

// AllCounts returns Counts for every queue.
func (b *Broker) AllCounts(ctx context.Context) (map[string]domain.JobCounts, error) {
	out := make(map[string]domain.JobCounts, len(Definitions))
	for _, d := range Definitions {
		c, err := b.Counts(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		out[d.Name] = c
	}
	return out, nil
}

// MetricsSeries returns the rolling per-minute completed/failed series of queue.
func (b *Broker) MetricsSeries(queue string) ([]MetricPoint, error) {
	if _, err := Lookup(queue); err != nil {
		return nil, domainerrors.NotFound(err.Error())
	}
	return b.history.series(queue, b.now()), nil
}

// WaitFlow blocks until the flow parent leaves waiting-children, which
// happens only after every attached child is terminal (or a child marked
// FailParentOnFailure failed).
func (b *Broker) WaitFlow(ctx context.Context, parentID string) (*domain.Job, error) {
	return b.waitUntil(ctx, parentID, func(j *domain.Job) bool {
		return j.State != domain.JobWaitingChildren
	})
}

// WaitJob blocks until the job is completed or failed.
func (b *Broker) WaitJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return b.waitUntil(ctx, jobID, func(j *domain.Job) bool {
		return j.State.IsTerminal()
	})
}

func (b *Broker) waitUntil(ctx context.Context, jobID string, done func(*domain.Job) bool) (*domain.Job, error) {
	for {
		changed := b.changed()
		job, err := b.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if done(job) {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

func (b *Broker) changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changedCh
}

func (b *Broker) broadcast() {
	b.mu.Lock()
	close(b.changedCh)
	b.changedCh = make(chan struct{})
	b.mu.Unlock()
}

// wake nudges idle workers of queue without blocking.
func (b *Broker) wake(queue string) {
	ch, ok := b.notify[queue]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
