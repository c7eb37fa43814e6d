package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*InstanceLock](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Search.IndexPath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index when the catalog
// already holds series, e.g. after the index directory was wiped.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	indexer := do.MustInvoke[*service.IndexerService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.Count()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	ids, err := catalog.SeriesIDs(ctx)
	if err != nil || len(ids) == 0 {
		return
	}

	log.Info("Search index is empty but series exist, triggering initial reindex",
		"series_count", len(ids),
	)

	go func() {
		n, err := indexer.Reindex(context.Background())
		if err != nil {
			log.WithError(err).Error("Initial search reindex failed")
			return
		}
		log.Info("Initial search reindex completed", "documents", n)
	}()
}
