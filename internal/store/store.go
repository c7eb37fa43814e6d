// Package store persists queue state in Badger: jobs, their secondary indexes
// and small pieces of runtime metadata such as paused queues.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/DokushoHQ/backends/internal/domain"
)

const (
	metaPrefix = "meta:"

	// updateRetries bounds how often Update re-runs fn after a badger conflict.
	updateRetries = 5
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Jobs *Entity[domain.Job]
}

// New opens (or creates) the Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Jobs must survive a crash between claim and completion
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// NewInMemory opens a throwaway database, used by tests.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initJobs()

	if logger != nil {
		logger.Info("job store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	}
	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing job store")
	}
	return s.db.Close()
}

// Tx is a read-write or read-only Badger transaction handed to callbacks.
type Tx struct {
	txn *badger.Txn
}

// Update runs fn in a read-write transaction and commits it. Badger's
// optimistic conflicts re-run fn from scratch, so fn must not have side
// effects outside the transaction.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	for range updateRetries {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&Tx{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return ErrConflict
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}

// GetMeta decodes the metadata value stored under key into dest.
// Returns ErrNotFound if the key is unset.
func (s *Store) GetMeta(ctx context.Context, key string, dest any) error {
	return s.View(ctx, func(tx *Tx) error {
		return tx.get([]byte(metaPrefix+key), dest)
	})
}

// SetMeta stores value under key.
func (s *Store) SetMeta(ctx context.Context, key string, value any) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.set([]byte(metaPrefix+key), value)
	})
}

// DeleteMeta removes key. Missing keys are not an error.
func (s *Store) DeleteMeta(ctx context.Context, key string) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.txn.Delete([]byte(metaPrefix + key))
	})
}

func (tx *Tx) get(key []byte, dest any) error {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

func (tx *Tx) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return tx.txn.Set(key, data)
}

func (tx *Tx) exists(key []byte) (bool, error) {
	_, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
