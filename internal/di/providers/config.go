// Package providers contains dependency injection providers for the Dokusho backend.
package providers

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.WithFields(map[string]any{
		"environment": cfg.App.Environment,
		"log_level":   cfg.Logger.Level,
		"data_path":   cfg.App.DataPath,
		"storage":     cfg.Storage.Backend,
		"config_file": cfg.File,
	}).Info("Starting Dokusho backend")

	return log, nil
}

// ProvideMetricsRegistry provides the Prometheus registry shared by the job
// runtime and the /metrics endpoint.
func ProvideMetricsRegistry(i do.Injector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, nil
}
