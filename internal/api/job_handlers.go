package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
)

func (s *Server) registerJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/queues/{queue}/jobs",
		Summary:     "List jobs",
		Description: "Pages through the jobs of a queue, optionally filtered by state",
		Tags:        []string{"Jobs"},
	}, s.handleListJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "getJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Tags:        []string{"Jobs"},
	}, s.handleGetJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeJob",
		Method:      http.MethodDelete,
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Remove job",
		Description: "Removes a job that is not running; removing a flow parent drops its pending children",
		Tags:        []string{"Jobs"},
	}, s.handleRemoveJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "retryJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/jobs/{id}/retry",
		Summary:     "Retry job",
		Description: "Requeues a completed or failed job with a fresh attempt budget",
		Tags:        []string{"Jobs"},
	}, s.handleRetryJob)
}

// ListJobsInput pages through one queue.
type ListJobsInput struct {
	Queue  string   `path:"queue" doc:"Queue name"`
	State  []string `query:"state" doc:"States to include; all when empty"`
	Offset int      `query:"offset" minimum:"0" default:"0" doc:"Jobs to skip"`
	Limit  int      `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

// ListJobsOutput is one page of jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []*domain.Job `json:"jobs" doc:"Jobs in state order, oldest first"`
	}
}

// JobInput selects a job by id.
type JobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// JobOutput wraps one job.
type JobOutput struct {
	Body *domain.Job
}

// RemoveJobOutput confirms a removal.
type RemoveJobOutput struct {
	Body struct {
		Removed string `json:"removed" doc:"Removed job ID"`
	}
}

func parseStates(raw []string) ([]domain.JobState, error) {
	states := make([]domain.JobState, 0, len(raw))
	for _, r := range raw {
		state := domain.JobState(r)
		if !slices.Contains(domain.AllJobStates, state) {
			return nil, domainerrors.Validationf("unknown job state %q", r)
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *Server) handleListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	states, err := parseStates(input.State)
	if err != nil {
		return nil, err
	}
	jobs, err := s.broker.List(ctx, input.Queue, states, input.Offset, input.Limit)
	if err != nil {
		return nil, err
	}
	resp := &ListJobsOutput{}
	resp.Body.Jobs = jobs
	return resp, nil
}

func (s *Server) handleGetJob(ctx context.Context, input *JobInput) (*JobOutput, error) {
	job, err := s.broker.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleRemoveJob(ctx context.Context, input *JobInput) (*RemoveJobOutput, error) {
	if err := s.broker.Remove(ctx, input.ID); err != nil {
		return nil, err
	}
	resp := &RemoveJobOutput{}
	resp.Body.Removed = input.ID
	return resp, nil
}

func (s *Server) handleRetryJob(ctx context.Context, input *JobInput) (*JobOutput, error) {
	job, err := s.broker.Retry(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job requeued", "job_id", job.ID, "queue", job.Queue)
	return &JobOutput{Body: job}, nil
}
