package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/media/images"
	"github.com/DokushoHQ/backends/internal/storage"
)

// ProvideObjectStore provides the page and cover object store.
func ProvideObjectStore(i do.Injector) (storage.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	objects, err := storage.New(context.Background(), cfg.Storage, log.Component("storage"))
	if err != nil {
		return nil, err
	}

	log.Info("Object storage initialized", "backend", cfg.Storage.Backend)
	return objects, nil
}

// ProvideUploader provides the download, transcode and upload pipeline.
func ProvideUploader(i do.Injector) (*images.Uploader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	objects := do.MustInvoke[storage.Store](i)

	component := log.Component("images")
	return images.NewUploader(
		images.NewDownloader(cfg.Images, cfg.Sources.UserAgent, component),
		images.NewProcessor(cfg.Images, component),
		objects,
		component,
	), nil
}
