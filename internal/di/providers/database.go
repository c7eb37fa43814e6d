package providers

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/samber/do/v2"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/store"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// ErrInstanceLocked is returned when another process owns the data directory.
var ErrInstanceLocked = errors.New("another dokusho instance is using the data directory")

// InstanceLock holds the exclusive lock on the data directory.
type InstanceLock struct {
	*flock.Flock
}

// Shutdown implements do.Shutdownable.
func (l *InstanceLock) Shutdown() error {
	return l.Unlock()
}

// ProvideInstanceLock takes the data directory lock. Badger and the SQLite
// writer both assume a single owning process.
func ProvideInstanceLock(i do.Injector) (*InstanceLock, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.App.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrInstanceLocked, cfg.LockPath())
	}

	log.Info("Instance lock acquired", "path", cfg.LockPath())
	return &InstanceLock{Flock: lock}, nil
}

// CatalogHandle wraps the SQLite catalog with shutdown capability.
type CatalogHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	return h.Close()
}

// ProvideCatalog provides the SQLite catalog store.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*InstanceLock](i)

	db, err := sqlite.Open(cfg.Database.CatalogPath, log.Component("catalog"))
	if err != nil {
		return nil, err
	}

	log.WithField("path", cfg.Database.CatalogPath).Info("Catalog initialized")
	return &CatalogHandle{Store: db}, nil
}

// JobStoreHandle wraps the Badger job store with shutdown capability.
type JobStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *JobStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideJobStore provides the Badger job store.
func ProvideJobStore(i do.Injector) (*JobStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	_ = do.MustInvoke[*InstanceLock](i)

	db, err := store.New(cfg.Database.JobsPath, log.Component("jobs"))
	if err != nil {
		return nil, err
	}

	log.WithField("path", cfg.Database.JobsPath).Info("Job store initialized")
	return &JobStoreHandle{Store: db}, nil
}
