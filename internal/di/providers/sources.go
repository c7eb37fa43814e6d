package providers

import (
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/builtin"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

// ProvideFetchClient provides the HTTP client shared by every adapter.
func ProvideFetchClient(i do.Injector) (*fetch.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return fetch.New(cfg.Sources, nil, log.Component("fetch")), nil
}

// ProvideRegistry provides the source adapter registry.
func ProvideRegistry(i do.Injector) (*source.Registry, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*fetch.Client](i)

	component := log.Component("sources")
	registry := source.NewRegistry(builtin.Builder(client, component), cfg.Sources, component)

	log.Info("Source registry configured",
		"languages", cfg.Sources.Languages,
		"force_disabled", cfg.Sources.ForceDisabled,
		"suwayomi", cfg.Sources.SuwayomiURL != "",
	)
	return registry, nil
}
