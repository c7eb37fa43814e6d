// Package di provides dependency injection configuration for the Dokusho backend.
package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/di/providers"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
	"github.com/DokushoHQ/backends/internal/storage"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetricsRegistry)

	// Persistence
	do.Provide(injector, providers.ProvideInstanceLock)
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideJobStore)
	do.Provide(injector, providers.ProvideBroker)

	// Storage layer
	do.Provide(injector, providers.ProvideObjectStore)
	do.Provide(injector, providers.ProvideUploader)

	// Sources
	do.Provide(injector, providers.ProvideFetchClient)
	do.Provide(injector, providers.ProvideRegistry)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Business services
	do.Provide(injector, providers.ProvideImportService)
	do.Provide(injector, providers.ProvidePageService)
	do.Provide(injector, providers.ProvideIndexerService)
	do.Provide(injector, providers.ProvideCoverService)
	do.Provide(injector, providers.ProvideDeletionService)
	do.Provide(injector, providers.ProvideUpdateService)
	do.Provide(injector, providers.ProvideAdminService)
	do.Provide(injector, providers.ProvideSourceSyncService)

	// Workers
	do.Provide(injector, providers.ProvideWorkers)
	do.Provide(injector, providers.ProvideScheduler)
	do.Provide(injector, providers.ProvideConfigWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Configuration and the instance lock are the usual failure points, so
	// report them as errors instead of panicking.
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*prometheus.Registry](injector)
	if _, err := do.Invoke[*providers.InstanceLock](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.CatalogHandle](injector)
	_ = do.MustInvoke[*providers.JobStoreHandle](injector)
	_ = do.MustInvoke[*queue.Broker](injector)
	_ = do.MustInvoke[storage.Store](injector)
	_ = do.MustInvoke[*images.Uploader](injector)
	_ = do.MustInvoke[*fetch.Client](injector)
	_ = do.MustInvoke[*source.Registry](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.ImportService](injector)
	_ = do.MustInvoke[*service.PageService](injector)
	_ = do.MustInvoke[*service.IndexerService](injector)
	_ = do.MustInvoke[*service.CoverService](injector)
	_ = do.MustInvoke[*service.DeletionService](injector)
	_ = do.MustInvoke[*service.UpdateService](injector)
	_ = do.MustInvoke[*service.AdminService](injector)
	_ = do.MustInvoke[*service.SourceSyncService](injector)

	// Workers
	_ = do.MustInvoke[*providers.WorkersHandle](injector)
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)
	_ = do.MustInvoke[*providers.ConfigWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
