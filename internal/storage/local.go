package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalRoute is the HTTP path the admin server serves local objects under
// when no public URL is configured.
const LocalRoute = "/files"

// Local stores objects as files under a base directory.
// Thread-safe for concurrent operations.
type Local struct {
	basePath  string
	publicURL string
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewLocal creates the base directory if needed.
func NewLocal(basePath, publicURL string, logger *slog.Logger) (*Local, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if publicURL == "" {
		publicURL = LocalRoute
	}
	return &Local{basePath: basePath, publicURL: publicURL, logger: logger}, nil
}

// Root returns the base directory.
func (l *Local) Root() string {
	return l.basePath
}

// Put writes data atomically through a temp file in the target directory.
func (l *Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("object data cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	full := l.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename object: %w", err)
	}
	return l.URL(key), nil
}

// DeletePrefix removes matching files and prunes emptied directories.
func (l *Local) DeletePrefix(_ context.Context, prefix string) (int, error) {
	prefix, err := cleanKey(prefix)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Directory prefixes ("a/b/") remove the whole tree.
	full := l.path(prefix)
	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		count := 0
		walkErr := filepath.WalkDir(full, func(_ string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				count++
			}
			return nil
		})
		if walkErr != nil {
			return 0, walkErr
		}
		if err := os.RemoveAll(full); err != nil {
			return 0, fmt.Errorf("remove %s: %w", prefix, err)
		}
		return count, nil
	}

	// Otherwise match file names within the parent directory.
	dir, base := filepath.Split(full)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	count := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), base) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return count, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}

// Exists checks for a regular file under key.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	key, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	info, err := os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// URL joins the public base and key.
func (l *Local) URL(key string) string {
	return joinURL(l.publicURL, strings.TrimPrefix(key, "/"))
}

func (l *Local) path(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}
