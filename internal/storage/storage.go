// Package storage is the object store holding processed covers and chapter
// pages. Keys are slash separated, e.g. "{serie}/chapters/{chapter}/page-3.webp".
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/DokushoHQ/backends/internal/config"
)

// Store writes objects and removes them by prefix.
type Store interface {
	// Put stores data under key and returns the object's public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// DeletePrefix removes every object whose key starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// URL returns the public URL of key without checking it exists.
	URL(key string) string
}

// New builds the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalPath, cfg.PublicURL, logger)
	case "s3":
		return NewS3(ctx, cfg.S3, cfg.PublicURL, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// CoverKey is the object key of a mirror cover ("{serie}/covers/{source}.{ext}")
// or of a custom cover when sourceID is "custom".
func CoverKey(serieID, sourceID, ext string) string {
	return path.Join(serieID, "covers", sourceID+"."+ext)
}

// PageKey is the object key of one chapter page.
func PageKey(serieID, chapterID string, index int, ext string) string {
	return path.Join(serieID, "chapters", chapterID, fmt.Sprintf("page-%d.%s", index, ext))
}

// ChapterPrefix covers every page object of a chapter.
func ChapterPrefix(serieID, chapterID string) string {
	return serieID + "/chapters/" + chapterID + "/"
}

// SeriePrefix covers every object of a series.
func SeriePrefix(serieID string) string {
	return serieID + "/"
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("object key %q escapes the store root", key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
