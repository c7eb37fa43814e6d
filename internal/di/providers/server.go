package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/api"
	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the admin HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	broker := do.MustInvoke[*queue.Broker](i)
	reg := do.MustInvoke[*prometheus.Registry](i)

	services := &api.Services{
		Import:   do.MustInvoke[*service.ImportService](i),
		Cover:    do.MustInvoke[*service.CoverService](i),
		Indexer:  do.MustInvoke[*service.IndexerService](i),
		Deletion: do.MustInvoke[*service.DeletionService](i),
		Admin:    do.MustInvoke[*service.AdminService](i),
		Sources:  do.MustInvoke[*service.SourceSyncService](i),
	}

	handler := api.NewServer(catalog.Store, broker, index.Index, services, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    reg,
	}, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	log.Info("Server running", "addr", srv.Addr)
	return &HTTPServerHandle{Server: srv}, nil
}
