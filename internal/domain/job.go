package domain

import (
	"encoding/json"
	"time"
)

// JobState is the lifecycle state of a queued job.
type JobState string

// Job states.
const (
	JobWaiting         JobState = "waiting"
	JobDelayed         JobState = "delayed"
	JobActive          JobState = "active"
	JobCompleted       JobState = "completed"
	JobFailed          JobState = "failed"
	JobWaitingChildren JobState = "waiting-children"
)

// AllJobStates lists every job state.
var AllJobStates = []JobState{
	JobWaiting, JobDelayed, JobActive, JobCompleted, JobFailed, JobWaitingChildren,
}

// IsTerminal reports whether the state is final.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// BackoffKind selects how retry delays grow.
type BackoffKind string

// Backoff kinds.
const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// Backoff is a retry delay policy.
type Backoff struct {
	Kind  BackoffKind   `json:"kind"`
	Delay time.Duration `json:"delay"`
}

// Next returns the delay before retry attempt n (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if b.Delay <= 0 {
		return 0
	}
	if b.Kind == BackoffExponential && attempt > 1 {
		return b.Delay * time.Duration(1<<min(attempt-1, 20))
	}
	return b.Delay
}

// Job is a persisted unit of queued work.
type Job struct {
	ID                  string          `json:"id"`
	Queue               string          `json:"queue"`
	Name                string          `json:"name"`
	Payload             json.RawMessage `json:"payload"`
	State               JobState        `json:"state"`
	AttemptsMade        int             `json:"attempts_made"`
	MaxAttempts         int             `json:"max_attempts"`
	Backoff             Backoff         `json:"backoff"`
	RunAt               time.Time       `json:"run_at"`
	ParentID            string          `json:"parent_id,omitempty"`
	ChildIDs            []string        `json:"child_ids,omitempty"`
	PendingChildren     int             `json:"pending_children,omitempty"`
	FailParentOnFailure bool            `json:"fail_parent_on_failure,omitempty"`
	Result              json.RawMessage `json:"result,omitempty"`
	FailedReason        string          `json:"failed_reason,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	FinishedAt          *time.Time      `json:"finished_at,omitempty"`
}

// JobCounts is the per-state tally for one queue.
type JobCounts struct {
	Waiting         int  `json:"waiting"`
	Active          int  `json:"active"`
	Completed       int  `json:"completed"`
	Failed          int  `json:"failed"`
	Delayed         int  `json:"delayed"`
	WaitingChildren int  `json:"waiting_children"`
	Paused          bool `json:"paused"`
}
