package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/store"
)

type testEntity struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Group string `json:"group"`
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntities(s *store.Store) *store.Entity[testEntity] {
	return store.NewEntity[testEntity](s, "test:").
		WithIndex("slug", func(e *testEntity) []string { return []string{e.Slug} }).
		WithMultiIndex("group", func(e *testEntity) []string { return []string{e.Group} })
}

func TestNew_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs")
	ctx := context.Background()

	s, err := store.New(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetMeta(ctx, "paused:all", true))
	require.NoError(t, s.Close())

	reopened, err := store.New(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	var paused bool
	require.NoError(t, reopened.GetMeta(ctx, "paused:all", &paused))
	assert.True(t, paused)
}

func TestEntity_CreateGetDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entities := testEntities(s)

	require.NoError(t, entities.Create(ctx, "1", &testEntity{ID: "1", Slug: "one-piece", Group: "a"}))

	got, err := entities.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "one-piece", got.Slug)

	err = entities.Create(ctx, "1", &testEntity{ID: "1", Slug: "other"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	err = entities.Create(ctx, "2", &testEntity{ID: "2", Slug: "one-piece"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists, "unique index conflict")

	byIndex, err := entities.GetByIndex(ctx, "slug", "one-piece")
	require.NoError(t, err)
	assert.Equal(t, "1", byIndex.ID)

	require.NoError(t, entities.Delete(ctx, "1"))
	require.NoError(t, entities.Delete(ctx, "1"), "delete is idempotent")

	_, err = entities.Get(ctx, "1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = entities.GetByIndex(ctx, "slug", "one-piece")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_UpdateMovesIndexes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entities := testEntities(s)

	require.NoError(t, entities.Create(ctx, "1", &testEntity{ID: "1", Slug: "a", Group: "x"}))
	require.NoError(t, entities.Create(ctx, "2", &testEntity{ID: "2", Slug: "b", Group: "x"}))

	require.NoError(t, entities.Update(ctx, "1", &testEntity{ID: "1", Slug: "a", Group: "y"}))
	err := entities.Update(ctx, "2", &testEntity{ID: "2", Slug: "a", Group: "x"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	err = entities.Update(ctx, "missing", &testEntity{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	x, err := entities.CountIndex(ctx, "group", "x")
	require.NoError(t, err)
	y, err := entities.CountIndex(ctx, "group", "y")
	require.NoError(t, err)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)
}

func TestEntity_TransactionIsAtomic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entities := testEntities(s)

	require.NoError(t, entities.Create(ctx, "taken", &testEntity{ID: "taken", Slug: "taken"}))

	err := s.Update(ctx, func(tx *store.Tx) error {
		if err := entities.CreateIn(tx, "new", &testEntity{ID: "new", Slug: "new"}); err != nil {
			return err
		}
		return entities.CreateIn(tx, "taken", &testEntity{ID: "taken"})
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = entities.Get(ctx, "new")
	assert.ErrorIs(t, err, store.ErrNotFound, "first write rolled back")

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return entities.PutIn(tx, "taken", &testEntity{ID: "taken", Slug: "renamed"})
	}))
	got, err := entities.Get(ctx, "taken")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Slug)
}

func TestEntity_ListSkipsIndexKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	entities := testEntities(s)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, entities.Create(ctx, id, &testEntity{ID: id, Slug: id, Group: "g"}))
	}

	var ids []string
	for e, err := range entities.List(ctx) {
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestJobs_StateIndexOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	add := func(id string, state domain.JobState, runAt time.Time) {
		require.NoError(t, s.Jobs.Create(ctx, id, &domain.Job{
			ID: id, Queue: "indexer", State: state, RunAt: runAt, Payload: json.RawMessage(`{}`),
		}))
	}
	add("late", domain.JobDelayed, base.Add(time.Hour))
	add("early", domain.JobDelayed, base.Add(time.Minute))
	add("waiting", domain.JobWaiting, base)

	var due []*domain.Job
	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		var err error
		due, err = s.DueJobsIn(tx, "indexer", domain.JobDelayed, base.Add(30*time.Minute), 0)
		return err
	}))
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].ID)

	page, err := s.JobsByState(ctx, "indexer", domain.JobDelayed, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "early", page[0].ID)
	assert.Equal(t, "late", page[1].ID)

	page, err = s.JobsByState(ctx, "indexer", domain.JobDelayed, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "late", page[0].ID)

	n, err := s.CountJobs(ctx, "indexer", domain.JobWaiting)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CountJobs(ctx, "cover-update", domain.JobWaiting)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMeta(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var v []string
	assert.ErrorIs(t, s.GetMeta(ctx, "paused", &v), store.ErrNotFound)

	require.NoError(t, s.SetMeta(ctx, "paused", []string{"indexer"}))
	require.NoError(t, s.GetMeta(ctx, "paused", &v))
	assert.Equal(t, []string{"indexer"}, v)

	require.NoError(t, s.DeleteMeta(ctx, "paused"))
	assert.ErrorIs(t, s.GetMeta(ctx, "paused", &v), store.ErrNotFound)
}
