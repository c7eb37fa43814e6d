// Package builtin assembles the native adapters and the catalogs discovered on
// a Suwayomi server into a source.Builder.
package builtin

import (
	"context"
	"log/slog"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/byparr"
	"github.com/DokushoHQ/backends/internal/source/fetch"
	"github.com/DokushoHQ/backends/internal/source/japscan"
	"github.com/DokushoHQ/backends/internal/source/mangadex"
	"github.com/DokushoHQ/backends/internal/source/suwayomi"
	"github.com/DokushoHQ/backends/internal/source/weebcentral"
)

// Builder returns a source.Builder sharing fc between every adapter.
//
// Japscan is only built when a byparr URL is configured. A Suwayomi server
// that cannot be reached is logged and skipped so native adapters keep
// working.
func Builder(fc *fetch.Client, logger *slog.Logger) source.Builder {
	return func(ctx context.Context, cfg config.SourcesConfig) ([]source.Source, error) {
		enabled := cfg.EnabledLanguages()

		jap := japscan.New(fc, byparr.New(fc, cfg.ByparrURL), enabled)
		native := []source.Source{
			weebcentral.New(fc, enabled),
			mangadex.New(fc, enabled),
			jap,
		}

		out := make([]source.Source, 0, len(native))
		for _, s := range native {
			if s == source.Source(jap) && cfg.ByparrURL == "" {
				logger.Info("byparr url not configured, japscan disabled")
				continue
			}
			out = append(out, s)
		}

		if cfg.SuwayomiURL == "" {
			return out, nil
		}
		discovered, err := suwayomi.Discover(ctx, suwayomi.NewClient(fc, cfg.SuwayomiURL), cfg, native, logger)
		if err != nil {
			logger.Warn("suwayomi discovery failed", "url", cfg.SuwayomiURL, "error", err)
			return out, nil
		}
		return append(out, discovered...), nil
	}
}
