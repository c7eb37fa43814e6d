package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/ratelimit"
)

const (
	idlePoll        = 5 * time.Second
	claimErrBackoff = 2 * time.Second
	janitorInterval = time.Hour
)

// Handler processes one job. The returned value is stored as the job result.
// Returning an error wrapped with Unrecoverable fails the job without retry.
type Handler func(ctx context.Context, job *domain.Job) (any, error)

// Handle registers the handler of queue. It must be called before Start.
func (b *Broker) Handle(queue string, h Handler) {
	if _, err := Lookup(queue); err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[queue] = h
}

// Start recovers jobs left active by a previous run, then launches the
// worker pool of every queue that has a handler plus the promoter and
// janitor loops.
func (b *Broker) Start(ctx context.Context) error {
	if _, err := b.RecoverStalled(ctx); err != nil {
		return err
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	limits := ratelimit.New(1, 1)

	b.mu.Lock()
	handlers := make(map[string]Handler, len(b.handlers))
	for q, h := range b.handlers {
		handlers[q] = h
	}
	b.mu.Unlock()

	for _, def := range Definitions {
		h, ok := handlers[def.Name]
		if !ok {
			continue
		}
		if def.Limiter != nil {
			limits.Configure(def.Name, def.Limiter.Max, def.Limiter.Duration)
		}
		b.logger.Info("starting queue workers",
			slog.String("queue", def.Name),
			slog.Int("workers", def.Concurrency),
		)
		for i := range max(def.Concurrency, 1) {
			b.wg.Add(1)
			go b.worker(def, h, limits, i)
		}
	}

	b.wg.Add(2)
	go b.promoter()
	go b.janitor()
	return nil
}

// Stop signals every loop to exit and waits for in-flight jobs to finish.
func (b *Broker) Stop() {
	if b.cancel == nil {
		return
	}
	b.logger.Info("stopping queue workers")
	b.cancel()
	b.wg.Wait()
	b.logger.Info("queue workers stopped")
}

func (b *Broker) worker(def Definition, h Handler, limits *ratelimit.KeyedRateLimiter, id int) {
	defer b.wg.Done()

	for {
		if b.ctx.Err() != nil {
			return
		}

		job, err := b.Claim(b.ctx, def.Name)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to claim job", slog.String("queue", def.Name), slog.Any("error", err))
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(claimErrBackoff):
			}
			continue
		}

		if job == nil {
			select {
			case <-b.ctx.Done():
				return
			case <-b.notify[def.Name]:
			case <-time.After(idlePoll):
			}
			continue
		}

		// A claimed job runs to completion even when the broker stops.
		runCtx := context.WithoutCancel(b.ctx)
		if def.Limiter != nil {
			_ = limits.Wait(runCtx, def.Name)
		}
		b.process(runCtx, h, job, id)
	}
}

func (b *Broker) process(ctx context.Context, h Handler, job *domain.Job, workerID int) {
	log := b.logger.With(
		slog.String("queue", job.Queue),
		slog.String("job_id", job.ID),
		slog.String("name", job.Name),
		slog.Int("worker_id", workerID),
		slog.Int("attempt", job.AttemptsMade),
	)
	log.Debug("job started")

	start := time.Now()
	result, err := safeCall(ctx, h, job)
	took := time.Since(start)

	if err == nil {
		if cerr := b.Complete(ctx, job, result, took); cerr != nil {
			log.Error("failed to mark job completed", slog.Any("error", cerr))
			return
		}
		log.Debug("job completed", slog.Duration("took", took))
		return
	}

	retrying, ferr := b.Fail(ctx, job, err, took)
	if ferr != nil {
		log.Error("failed to record job failure", slog.Any("error", ferr), slog.Any("cause", err))
		return
	}
	if retrying {
		log.Warn("job attempt failed, retrying", slog.Any("error", err))
		return
	}
	log.Error("job failed", slog.Any("error", err), slog.Duration("took", took))
}

func safeCall(ctx context.Context, h Handler, job *domain.Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, job)
}

func (b *Broker) promoter() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Promote(b.ctx); err != nil && b.ctx.Err() == nil {
				b.logger.Error("failed to promote delayed jobs", slog.Any("error", err))
			}
		}
	}
}

func (b *Broker) janitor() {
	defer b.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.sweep(b.ctx)
		}
	}
}

// sweep trims finished jobs past their retention.
func (b *Broker) sweep(ctx context.Context) {
	for _, def := range Definitions {
		for state, keep := range map[domain.JobState]time.Duration{
			domain.JobCompleted: b.completedRetention,
			domain.JobFailed:    b.failedRetention,
		} {
			if keep <= 0 {
				continue
			}
			n, err := b.Clean(ctx, def.Name, state, keep)
			if err != nil {
				b.logger.Warn("failed to clean jobs",
					slog.String("queue", def.Name), slog.String("state", string(state)), slog.Any("error", err))
				continue
			}
			if n > 0 {
				b.logger.Debug("cleaned jobs", slog.String("queue", def.Name), slog.String("state", string(state)), slog.Int("count", n))
			}
		}
	}
}
