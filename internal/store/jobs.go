package store

import (
	"context"
	"fmt"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
)

const (
	jobPrefix     = "job:"
	jobStateIndex = "state"
)

func (s *Store) initJobs() {
	s.Jobs = NewEntity[domain.Job](s, jobPrefix).
		WithMultiIndex(jobStateIndex, func(j *domain.Job) []string {
			return []string{jobStateKey(j)}
		})
}

// jobStateKey orders jobs inside one queue and state. Pending jobs sort by
// run-at so the dispatcher takes the oldest due job first; finished jobs sort
// by completion time so the janitor can trim the oldest.
func jobStateKey(j *domain.Job) string {
	at := j.RunAt
	if j.State.IsTerminal() && j.FinishedAt != nil {
		at = *j.FinishedAt
	}
	return fmt.Sprintf("%s|%020d", JobStatePrefix(j.Queue, j.State), at.UnixNano())
}

// JobStatePrefix is the index prefix selecting every job of queue in state.
func JobStatePrefix(queue string, state domain.JobState) string {
	return queue + "|" + string(state) + "|"
}

// DueJobsIn returns up to limit jobs of queue in state whose order time is at
// or before now, oldest first.
func (s *Store) DueJobsIn(tx *Tx, queue string, state domain.JobState, now time.Time, limit int) ([]*domain.Job, error) {
	var (
		out     []*domain.Job
		scanErr error
	)
	err := s.Jobs.ScanIndexIn(tx, jobStateIndex, JobStatePrefix(queue, state), func(id string) bool {
		job, err := s.Jobs.GetIn(tx, id)
		if err != nil {
			scanErr = err
			return false
		}
		orderAt := job.RunAt
		if state.IsTerminal() && job.FinishedAt != nil {
			orderAt = *job.FinishedAt
		}
		if orderAt.After(now) {
			return false
		}
		out = append(out, job)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, scanErr
}

// JobsByState pages through the jobs of queue in state, oldest first.
func (s *Store) JobsByState(ctx context.Context, queue string, state domain.JobState, offset, limit int) ([]*domain.Job, error) {
	var out []*domain.Job
	err := s.View(ctx, func(tx *Tx) error {
		skipped := 0
		var getErr error
		err := s.Jobs.ScanIndexIn(tx, jobStateIndex, JobStatePrefix(queue, state), func(id string) bool {
			if skipped < offset {
				skipped++
				return true
			}
			job, err := s.Jobs.GetIn(tx, id)
			if err != nil {
				getErr = err
				return false
			}
			out = append(out, job)
			return limit <= 0 || len(out) < limit
		})
		if err != nil {
			return err
		}
		return getErr
	})
	return out, err
}

// CountJobs counts the jobs of queue in state.
func (s *Store) CountJobs(ctx context.Context, queue string, state domain.JobState) (int, error) {
	return s.Jobs.CountIndex(ctx, jobStateIndex, JobStatePrefix(queue, state))
}
