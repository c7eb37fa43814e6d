package providers

import (
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/storage"
)

// ProvideImportService provides the import service.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	catalog := do.MustInvoke[*CatalogHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	broker := do.MustInvoke[*queue.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewImportService(catalog.Store, registry, broker, log.Component("import")), nil
}

// ProvidePageService provides the chapter page service.
func ProvidePageService(i do.Injector) (*service.PageService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	uploader := do.MustInvoke[*images.Uploader](i)
	objects := do.MustInvoke[storage.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewPageService(catalog.Store, registry, uploader, objects,
		cfg.Images.PageConcurrency, log.Component("pages")), nil
}

// ProvideIndexerService provides the search indexer. The language policy is
// read from the registry so that config reloads apply to new documents.
func ProvideIndexerService(i do.Injector) (*service.IndexerService, error) {
	catalog := do.MustInvoke[*CatalogHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	policy := func() domain.LanguagePolicy {
		return registry.Config().LanguagePolicy()
	}
	return service.NewIndexerService(catalog.Store, index.Index, policy, log.Component("indexer")), nil
}

// ProvideCoverService provides the cover service.
func ProvideCoverService(i do.Injector) (*service.CoverService, error) {
	catalog := do.MustInvoke[*CatalogHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	broker := do.MustInvoke[*queue.Broker](i)
	uploader := do.MustInvoke[*images.Uploader](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCoverService(catalog.Store, registry, broker, uploader, log.Component("cover")), nil
}

// ProvideDeletionService provides the series deletion service.
func ProvideDeletionService(i do.Injector) (*service.DeletionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	broker := do.MustInvoke[*queue.Broker](i)
	indexer := do.MustInvoke[*service.IndexerService](i)
	objects := do.MustInvoke[storage.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDeletionService(catalog.Store, broker, indexer, objects,
		cfg.GracePeriod(), log.Component("deletion")), nil
}

// ProvideUpdateService provides the update scheduler service.
func ProvideUpdateService(i do.Injector) (*service.UpdateService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	broker := do.MustInvoke[*queue.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewUpdateService(catalog.Store, registry, broker, cfg.Scheduler, log.Component("updates")), nil
}

// ProvideAdminService provides the admin service.
func ProvideAdminService(i do.Injector) (*service.AdminService, error) {
	catalog := do.MustInvoke[*CatalogHandle](i)
	broker := do.MustInvoke[*queue.Broker](i)
	indexer := do.MustInvoke[*service.IndexerService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAdminService(catalog.Store, broker, indexer, log.Component("admin")), nil
}

// ProvideSourceSyncService provides the sources sync service.
func ProvideSourceSyncService(i do.Injector) (*service.SourceSyncService, error) {
	catalog := do.MustInvoke[*CatalogHandle](i)
	registry := do.MustInvoke[*source.Registry](i)
	broker := do.MustInvoke[*queue.Broker](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSourceSyncService(catalog.Store, registry, broker, log.Component("sources")), nil
}
