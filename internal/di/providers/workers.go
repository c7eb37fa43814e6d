package providers

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/scheduler"
	"github.com/DokushoHQ/backends/internal/service"
)

// WorkersHandle owns the running worker pools of every queue.
type WorkersHandle struct {
	broker *queue.Broker
}

// Shutdown implements do.Shutdownable. Stop waits for in-flight jobs.
func (h *WorkersHandle) Shutdown() error {
	h.broker.Stop()
	return nil
}

// ProvideWorkers registers every job handler and starts the broker.
func ProvideWorkers(i do.Injector) (*WorkersHandle, error) {
	broker := do.MustInvoke[*queue.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)

	importer := do.MustInvoke[*service.ImportService](i)
	pages := do.MustInvoke[*service.PageService](i)
	covers := do.MustInvoke[*service.CoverService](i)
	indexer := do.MustInvoke[*service.IndexerService](i)
	deletion := do.MustInvoke[*service.DeletionService](i)
	updates := do.MustInvoke[*service.UpdateService](i)
	sources := do.MustInvoke[*service.SourceSyncService](i)

	broker.Handle(queue.SerieInserter, importer.Handle)
	broker.Handle(queue.ChapterData, pages.HandleChapter)
	broker.Handle(queue.PageRetry, pages.HandleRetry)
	broker.Handle(queue.CoverUpdate, covers.Handle)
	broker.Handle(queue.Indexer, indexer.Handle)
	broker.Handle(queue.DeleteSerie, deletion.Handle)
	broker.Handle(queue.UpdateScheduler, updates.Handle)
	broker.Handle(queue.SourcesSync, sources.Handle)

	ctx := context.Background()
	if err := broker.Start(ctx); err != nil {
		return nil, err
	}

	// The sources table must reflect the configured adapters before the
	// first import or update runs.
	if _, err := sources.Enqueue(ctx, "startup"); err != nil {
		log.Warn("Failed to enqueue startup sources sync", "error", err)
	}

	log.Info("Job workers started", "queues", len(queue.Definitions))
	return &WorkersHandle{broker: broker}, nil
}

// SchedulerHandle wraps the cron scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.CronScheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideScheduler registers the repeatable update jobs. The scheduler stays
// idle when disabled so that manual triggers still work.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	broker := do.MustInvoke[*queue.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*WorkersHandle](i)

	cron := scheduler.New(broker, log.Component("scheduler"))
	for _, r := range scheduler.Defaults(cfg.Scheduler) {
		if err := cron.Register(r); err != nil {
			return nil, err
		}
	}

	if !cfg.Scheduler.Enabled {
		log.Info("Update scheduler disabled by configuration")
		return &SchedulerHandle{CronScheduler: cron}, nil
	}

	cron.Start()
	log.Info("Update scheduler started", "entries", len(cron.Entries()))
	return &SchedulerHandle{CronScheduler: cron}, nil
}

// ConfigWatcherHandle stops the config file watcher on shutdown.
type ConfigWatcherHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *ConfigWatcherHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideConfigWatcher reloads the sources section whenever the config file
// changes. Without a config file there is nothing to watch.
func ProvideConfigWatcher(i do.Injector) (*ConfigWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sources := do.MustInvoke[*service.SourceSyncService](i)

	if cfg.File == "" {
		return &ConfigWatcherHandle{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	component := log.Component("config")

	go func() {
		defer close(done)
		err := config.Watch(ctx, cfg.File, component, func(sc config.SourcesConfig) {
			component.Info("Sources configuration changed, reloading",
				"languages", sc.Languages,
				"force_disabled", sc.ForceDisabled,
			)
			sources.Reload(ctx, sc)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			component.Error("Config watcher stopped", "error", err)
		}
	}()

	log.Info("Watching config file", "path", cfg.File)
	return &ConfigWatcherHandle{cancel: cancel, done: done}, nil
}
