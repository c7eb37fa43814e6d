package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Reload re-reads the TOML file on top of the defaults and returns the sources
// section. Only the runtime-reloadable fields are meant to be applied.
func Reload(path string) (SourcesConfig, error) {
	cfg := Default()
	if err := decodeFile(path, &cfg); err != nil {
		return SourcesConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return SourcesConfig{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg.Sources, nil
}

// Watch reloads the config file whenever it is written and hands the new
// sources section to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// replace the file through a rename are still picked up.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(SourcesConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			sources, err := Reload(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous values", "path", path, "error", err)
				continue
			}
			logger.Info("config reloaded",
				"path", path,
				"languages", sources.Languages,
				"force_disabled", sources.ForceDisabled,
			)
			onChange(sources)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
