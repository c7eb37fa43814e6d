package suwayomi

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/source"
)

const (
	localCatalogID   = "0"
	localCatalogName = "Local source"
)

// Discover turns the server's installed catalogs into sources. It skips the
// local catalog, catalogs a native adapter already covers (matched by name,
// ignoring case), catalogs outside the enabled languages and ids listed in
// cfg.SuwayomiDisabled.
func Discover(ctx context.Context, client *Client, cfg config.SourcesConfig, native []source.Source, logger *slog.Logger) ([]source.Source, error) {
	catalogs, err := client.Catalogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suwayomi catalogs: %w", err)
	}

	nativeNames := make(map[string]bool, len(native))
	for _, s := range native {
		nativeNames[strings.ToLower(s.Info().Name)] = true
	}
	enabled := cfg.EnabledLanguages()

	var out []source.Source
	for _, c := range catalogs {
		switch {
		case c.ID == localCatalogID || c.Name == localCatalogName:
			continue
		case nativeNames[strings.ToLower(c.Name)]:
			logger.Debug("suwayomi catalog covered by native adapter", "catalog", c.Name)
			continue
		case !slices.Contains(enabled, catalogLanguage(c.Lang)):
			continue
		case slices.Contains(cfg.SuwayomiDisabled, c.ID):
			logger.Debug("suwayomi catalog disabled", "catalog", c.Name, "id", c.ID)
			continue
		}
		out = append(out, NewAdapter(client, c))
	}

	logger.Info("suwayomi catalogs discovered", "available", len(catalogs), "exposed", len(out))
	return out, nil
}
