package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const multiSep = "\x00"

// Entity provides generic CRUD operations for any persisted type.
//
// Every method has a context variant that opens its own transaction and an
// "In" variant that joins a caller-supplied Tx, so several entities can be
// changed atomically (a flow parent and all of its children, for example).
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index defines a secondary index on an entity.
//
// A unique index maps one key to one id and rejects duplicates. A multi index
// allows any number of ids per key and is scanned by key prefix, which makes
// it suitable for ordered keys such as "queue|state|run-at".
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
	multi  bool
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithIndex adds a unique secondary index.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithMultiIndex adds a non-unique, prefix-scannable secondary index.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, multi: true})
	return e
}

func (e *Entity[T]) primaryKey(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(idx Index[T], key, id string) []byte {
	if idx.multi {
		return []byte(e.prefix + "midx:" + idx.name + ":" + key + multiSep + id)
	}
	return []byte(e.prefix + "idx:" + idx.name + ":" + key)
}

func (e *Entity[T]) index(name string) (Index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// Create creates a new entity with the given ID.
// Returns ErrAlreadyExists if the ID or a unique index key is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	return e.store.Update(ctx, func(tx *Tx) error {
		return e.CreateIn(tx, id, entity)
	})
}

// CreateIn is Create inside an existing transaction.
func (e *Entity[T]) CreateIn(tx *Tx, id string, entity *T) error {
	exists, err := tx.exists(e.primaryKey(id))
	if err != nil {
		return fmt.Errorf("failed to check existing key: %w", err)
	}
	if exists {
		return ErrAlreadyExists
	}
	if err := e.checkUnique(tx, entity, nil); err != nil {
		return err
	}
	return e.write(tx, id, entity)
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	var out *T
	err := e.store.View(ctx, func(tx *Tx) error {
		var err error
		out, err = e.GetIn(tx, id)
		return err
	})
	return out, err
}

// GetIn is Get inside an existing transaction.
func (e *Entity[T]) GetIn(tx *Tx, id string) (*T, error) {
	var entity T
	if err := tx.get(e.primaryKey(id), &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIndex retrieves an entity through a unique secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	idx, ok := e.index(indexName)
	if !ok || idx.multi {
		return nil, fmt.Errorf("unique index %q not defined: %w", indexName, ErrInvalidInput)
	}

	var out *T
	err := e.store.View(ctx, func(tx *Tx) error {
		item, err := tx.txn.Get(e.indexKey(idx, value, ""))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		out, err = e.GetIn(tx, id)
		return err
	})
	return out, err
}

// Update replaces an existing entity.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	return e.store.Update(ctx, func(tx *Tx) error {
		return e.UpdateIn(tx, id, entity)
	})
}

// UpdateIn is Update inside an existing transaction.
func (e *Entity[T]) UpdateIn(tx *Tx, id string, entity *T) error {
	old, err := e.GetIn(tx, id)
	if err != nil {
		return err
	}
	return e.replace(tx, id, old, entity)
}

// PutIn creates or replaces an entity inside an existing transaction.
func (e *Entity[T]) PutIn(tx *Tx, id string, entity *T) error {
	old, err := e.GetIn(tx, id)
	if errors.Is(err, ErrNotFound) {
		if err := e.checkUnique(tx, entity, nil); err != nil {
			return err
		}
		return e.write(tx, id, entity)
	}
	if err != nil {
		return err
	}
	return e.replace(tx, id, old, entity)
}

func (e *Entity[T]) replace(tx *Tx, id string, old, entity *T) error {
	if err := e.checkUnique(tx, entity, old); err != nil {
		return err
	}
	if err := e.removeIndexes(tx, id, old); err != nil {
		return err
	}
	return e.write(tx, id, entity)
}

// Delete deletes an entity by ID.
// Idempotent: deleting a missing entity is not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	return e.store.Update(ctx, func(tx *Tx) error {
		return e.DeleteIn(tx, id)
	})
}

// DeleteIn is Delete inside an existing transaction.
func (e *Entity[T]) DeleteIn(tx *Tx, id string) error {
	old, err := e.GetIn(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.removeIndexes(tx, id, old); err != nil {
		return err
	}
	if err := tx.txn.Delete(e.primaryKey(id)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				remainder := string(it.Item().Key()[len(e.prefix):])
				if strings.HasPrefix(remainder, "idx:") || strings.HasPrefix(remainder, "midx:") {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// ScanIndexIn walks the ids of a multi index whose keys start with keyPrefix,
// in key order. fn returns false to stop early.
func (e *Entity[T]) ScanIndexIn(tx *Tx, indexName, keyPrefix string, fn func(id string) bool) error {
	idx, ok := e.index(indexName)
	if !ok || !idx.multi {
		return fmt.Errorf("multi index %q not defined: %w", indexName, ErrInvalidInput)
	}

	prefix := []byte(e.prefix + "midx:" + idx.name + ":" + keyPrefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		sep := strings.LastIndex(key, multiSep)
		if sep < 0 {
			continue
		}
		if !fn(key[sep+1:]) {
			return nil
		}
	}
	return nil
}

// CountIndex counts the multi index entries whose keys start with keyPrefix.
func (e *Entity[T]) CountIndex(ctx context.Context, indexName, keyPrefix string) (int, error) {
	n := 0
	err := e.store.View(ctx, func(tx *Tx) error {
		return e.ScanIndexIn(tx, indexName, keyPrefix, func(string) bool {
			n++
			return true
		})
	})
	return n, err
}

func (e *Entity[T]) checkUnique(tx *Tx, entity, old *T) error {
	for _, idx := range e.indexes {
		if idx.multi {
			continue
		}
		var reused map[string]bool
		if old != nil {
			reused = make(map[string]bool)
			for _, k := range idx.keyGen(old) {
				reused[k] = true
			}
		}
		for _, k := range idx.keyGen(entity) {
			if reused[k] {
				continue
			}
			exists, err := tx.exists(e.indexKey(idx, k, ""))
			if err != nil {
				return fmt.Errorf("failed to check index key: %w", err)
			}
			if exists {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, k, ErrAlreadyExists)
			}
		}
	}
	return nil
}

func (e *Entity[T]) write(tx *Tx, id string, entity *T) error {
	if err := tx.set(e.primaryKey(id), entity); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	for _, idx := range e.indexes {
		for _, k := range idx.keyGen(entity) {
			if err := tx.txn.Set(e.indexKey(idx, k, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) removeIndexes(tx *Tx, id string, old *T) error {
	for _, idx := range e.indexes {
		for _, k := range idx.keyGen(old) {
			if err := tx.txn.Delete(e.indexKey(idx, k, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}
