package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/DokushoHQ/backends/internal/domain"
	domainerrors "github.com/DokushoHQ/backends/internal/errors"
	"github.com/DokushoHQ/backends/internal/queue"
)

func (s *Server) registerQueueRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listQueues",
		Method:      http.MethodGet,
		Path:        "/api/v1/queues",
		Summary:     "List queues",
		Description: "Returns every queue with its job counts and pause state",
		Tags:        []string{"Queues"},
	}, s.handleListQueues)

	huma.Register(s.api, huma.Operation{
		OperationID: "getQueue",
		Method:      http.MethodGet,
		Path:        "/api/v1/queues/{queue}",
		Summary:     "Get queue",
		Description: "Returns the job counts of one queue",
		Tags:        []string{"Queues"},
	}, s.handleGetQueue)

	huma.Register(s.api, huma.Operation{
		OperationID: "getQueueMetrics",
		Method:      http.MethodGet,
		Path:        "/api/v1/queues/{queue}/metrics",
		Summary:     "Queue throughput",
		Description: "Returns completed and failed jobs per minute over the last hour",
		Tags:        []string{"Queues"},
	}, s.handleQueueMetrics)

	huma.Register(s.api, huma.Operation{
		OperationID: "pauseQueue",
		Method:      http.MethodPost,
		Path:        "/api/v1/queues/{queue}/pause",
		Summary:     "Pause queue",
		Description: "Stops workers from claiming new jobs; running jobs finish",
		Tags:        []string{"Queues"},
	}, s.handlePauseQueue)

	huma.Register(s.api, huma.Operation{
		OperationID: "resumeQueue",
		Method:      http.MethodPost,
		Path:        "/api/v1/queues/{queue}/resume",
		Summary:     "Resume queue",
		Tags:        []string{"Queues"},
	}, s.handleResumeQueue)

	huma.Register(s.api, huma.Operation{
		OperationID: "retryFailedJobs",
		Method:      http.MethodPost,
		Path:        "/api/v1/queues/{queue}/retry-failed",
		Summary:     "Retry failed jobs",
		Description: "Requeues every failed job of the queue",
		Tags:        []string{"Queues"},
	}, s.handleRetryFailedJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "pauseAllQueues",
		Method:      http.MethodPost,
		Path:        "/api/v1/queues/pause-all",
		Summary:     "Pause all queues",
		Tags:        []string{"Queues"},
	}, s.handlePauseAll)

	huma.Register(s.api, huma.Operation{
		OperationID: "resumeAllQueues",
		Method:      http.MethodPost,
		Path:        "/api/v1/queues/resume-all",
		Summary:     "Resume all queues",
		Description: "Lifts the global pause and every per-queue pause",
		Tags:        []string{"Queues"},
	}, s.handleResumeAll)
}

// QueueResponse is a queue with its counts.
type QueueResponse struct {
	Name        string           `json:"name" doc:"Queue name"`
	DisplayName string           `json:"display_name" doc:"Human-readable queue name"`
	Concurrency int              `json:"concurrency" doc:"Worker count"`
	Counts      domain.JobCounts `json:"counts" doc:"Jobs per state"`
}

// ListQueuesOutput lists every queue.
type ListQueuesOutput struct {
	Body struct {
		Queues []QueueResponse `json:"queues" doc:"Queues in display order"`
	}
}

// QueueInput selects a queue by name.
type QueueInput struct {
	Queue string `path:"queue" doc:"Queue name, e.g. serie-inserter"`
}

// GetQueueOutput wraps one queue.
type GetQueueOutput struct {
	Body QueueResponse
}

// QueueMetricsOutput carries the per-minute series.
type QueueMetricsOutput struct {
	Body struct {
		Queue  string              `json:"queue" doc:"Queue name"`
		Points []queue.MetricPoint `json:"points" doc:"One point per minute, oldest first"`
	}
}

// QueueActionOutput confirms a pause or resume.
type QueueActionOutput struct {
	Body struct {
		Queue  string `json:"queue,omitempty" doc:"Queue name, empty for global actions"`
		Paused bool   `json:"paused" doc:"Pause state after the action"`
	}
}

// RetriedOutput reports how many items were requeued.
type RetriedOutput struct {
	Body struct {
		Retried int `json:"retried" doc:"Number of requeued jobs or chapters"`
	}
}

func (s *Server) queueResponse(ctx context.Context, def queue.Definition) (QueueResponse, error) {
	counts, err := s.broker.Counts(ctx, def.Name)
	if err != nil {
		return QueueResponse{}, err
	}
	return QueueResponse{
		Name:        def.Name,
		DisplayName: def.DisplayName,
		Concurrency: def.Concurrency,
		Counts:      counts,
	}, nil
}

func lookupQueue(name string) (queue.Definition, error) {
	def, err := queue.Lookup(name)
	if err != nil {
		return queue.Definition{}, domainerrors.NotFound(err.Error())
	}
	return def, nil
}

func (s *Server) handleListQueues(ctx context.Context, _ *struct{}) (*ListQueuesOutput, error) {
	resp := &ListQueuesOutput{}
	resp.Body.Queues = make([]QueueResponse, 0, len(queue.Definitions))
	for _, def := range queue.Definitions {
		q, err := s.queueResponse(ctx, def)
		if err != nil {
			return nil, err
		}
		resp.Body.Queues = append(resp.Body.Queues, q)
	}
	return resp, nil
}

func (s *Server) handleGetQueue(ctx context.Context, input *QueueInput) (*GetQueueOutput, error) {
	def, err := lookupQueue(input.Queue)
	if err != nil {
		return nil, err
	}
	q, err := s.queueResponse(ctx, def)
	if err != nil {
		return nil, err
	}
	return &GetQueueOutput{Body: q}, nil
}

func (s *Server) handleQueueMetrics(_ context.Context, input *QueueInput) (*QueueMetricsOutput, error) {
	points, err := s.broker.MetricsSeries(input.Queue)
	if err != nil {
		return nil, err
	}
	resp := &QueueMetricsOutput{}
	resp.Body.Queue = input.Queue
	resp.Body.Points = points
	return resp, nil
}

func (s *Server) handlePauseQueue(ctx context.Context, input *QueueInput) (*QueueActionOutput, error) {
	if err := s.broker.Pause(ctx, input.Queue); err != nil {
		return nil, err
	}
	s.logger.Info("queue paused", "queue", input.Queue)
	return s.queueAction(input.Queue), nil
}

func (s *Server) handleResumeQueue(ctx context.Context, input *QueueInput) (*QueueActionOutput, error) {
	if err := s.broker.Resume(ctx, input.Queue); err != nil {
		return nil, err
	}
	s.logger.Info("queue resumed", "queue", input.Queue)
	return s.queueAction(input.Queue), nil
}

func (s *Server) handlePauseAll(ctx context.Context, _ *struct{}) (*QueueActionOutput, error) {
	if err := s.broker.PauseAll(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("all queues paused")
	resp := &QueueActionOutput{}
	resp.Body.Paused = true
	return resp, nil
}

func (s *Server) handleResumeAll(ctx context.Context, _ *struct{}) (*QueueActionOutput, error) {
	if err := s.broker.ResumeAll(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("all queues resumed")
	return &QueueActionOutput{}, nil
}

func (s *Server) queueAction(name string) *QueueActionOutput {
	resp := &QueueActionOutput{}
	resp.Body.Queue = name
	resp.Body.Paused = s.broker.IsPaused(name)
	return resp
}

func (s *Server) handleRetryFailedJobs(ctx context.Context, input *QueueInput) (*RetriedOutput, error) {
	if _, err := lookupQueue(input.Queue); err != nil {
		return nil, err
	}
	n, err := s.broker.RetryAllFailed(ctx, input.Queue)
	if err != nil {
		return nil, err
	}
	s.logger.Info("failed jobs requeued", "queue", input.Queue, "count", n)
	resp := &RetriedOutput{}
	resp.Body.Retried = n
	return resp, nil
}
