package providers

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/validation"
)

// ProvideBroker provides the job broker. Workers are started separately once
// every handler is registered.
func ProvideBroker(i do.Injector) (*queue.Broker, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	jobs := do.MustInvoke[*JobStoreHandle](i)
	reg := do.MustInvoke[*prometheus.Registry](i)

	return queue.NewBroker(context.Background(), queue.Options{
		Store:              jobs.Store,
		Logger:             log.Component("queue"),
		Validator:          validation.New(),
		Metrics:            queue.NewMetrics(reg),
		PromoteInterval:    cfg.Queue.PromoteInterval,
		CompletedRetention: cfg.Queue.CompletedRetention,
		FailedRetention:    cfg.Queue.FailedRetention,
	})
}
