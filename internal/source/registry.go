package source

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/DokushoHQ/backends/internal/config"
)

// Builder constructs the adapters for a configuration.
type Builder func(ctx context.Context, cfg config.SourcesConfig) ([]Source, error)

// ParsedURL is a public serie URL resolved to a catalog.
type ParsedURL struct {
	SourceID string `json:"source_id"`
	SerieID  string `json:"serie_id"`
}

// Registry holds the active adapters. It builds them lazily and rebuilds
// after Invalidate, so language and force-disable changes apply without a
// restart.
type Registry struct {
	mu      sync.RWMutex
	build   Builder
	cfg     config.SourcesConfig
	sources []Source
	byID    map[string]Source
	loaded  bool
	logger  *slog.Logger
}

// NewRegistry creates a registry that builds adapters with build.
func NewRegistry(build Builder, cfg config.SourcesConfig, logger *slog.Logger) *Registry {
	return &Registry{
		build:  build,
		cfg:    cfg,
		logger: logger,
	}
}

// All returns every adapter, building them on first use.
func (r *Registry) All(ctx context.Context) ([]Source, error) {
	r.mu.RLock()
	if r.loaded {
		out := slices.Clone(r.sources)
		r.mu.RUnlock()
		return out, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		if err := r.load(ctx); err != nil {
			return nil, err
		}
	}
	return slices.Clone(r.sources), nil
}

func (r *Registry) load(ctx context.Context) error {
	sources, err := r.build(ctx, r.cfg)
	if err != nil {
		return fmt.Errorf("build sources: %w", err)
	}
	byID := make(map[string]Source, len(sources))
	kept := sources[:0]
	for _, s := range sources {
		id := s.Info().ID
		if _, dup := byID[id]; dup {
			r.logger.Warn("duplicate source id, keeping first", "source_id", id)
			continue
		}
		byID[id] = s
		kept = append(kept, s)
	}
	r.sources = kept
	r.byID = byID
	r.loaded = true
	r.logger.Info("sources loaded", "count", len(kept))
	return nil
}

// Get returns the adapter with id.
func (r *Registry) Get(ctx context.Context, id string) (Source, error) {
	if _, err := r.All(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, id)
	}
	return s, nil
}

// Invalidate replaces the configuration and drops the cached adapters.
func (r *Registry) Invalidate(cfg config.SourcesConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.sources = nil
	r.byID = nil
	r.loaded = false
	r.logger.Info("source registry invalidated",
		"languages", cfg.Languages,
		"force_disabled", cfg.ForceDisabled)
}

// IsForceDisabled reports whether the configuration disables id.
func (r *Registry) IsForceDisabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.cfg.ForceDisabled, id)
}

// ParseSerieURL finds the adapter recognizing rawURL.
func (r *Registry) ParseSerieURL(ctx context.Context, rawURL string) (ParsedURL, error) {
	rawURL = strings.TrimSpace(rawURL)
	sources, err := r.All(ctx)
	if err != nil {
		return ParsedURL{}, err
	}
	for _, s := range sources {
		if id, ok := s.ParseURL(rawURL); ok {
			return ParsedURL{SourceID: s.Info().ID, SerieID: id}, nil
		}
	}
	return ParsedURL{}, fmt.Errorf("%w: no source recognizes %q", ErrNotFound, rawURL)
}

// Config returns the configuration the adapters are built from.
func (r *Registry) Config() config.SourcesConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}
