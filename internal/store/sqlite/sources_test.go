package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
)

func TestUpsertSource_PreservesFingerprint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := seedSource(t, s, "mangadex")
	require.NoError(t, s.SetSourceFingerprint(ctx, "mangadex", []string{"a", "b", "c"}))

	src.Version = "1.1.0"
	src.SearchFilters = domain.SupportedFilters{Query: true, Sort: []domain.Sort{domain.SortLatest}}
	require.NoError(t, s.UpsertSource(ctx, src))

	got, err := s.GetSource(ctx, "mangadex")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Version)
	assert.Equal(t, []string{"a", "b", "c"}, got.LastFetchFingerprint)
	assert.True(t, got.SearchFilters.Query)
	assert.Equal(t, 10*time.Second, got.Timeout)
	assert.Equal(t, 500*time.Millisecond, got.RequestInterval())
}

func TestSetSourcesEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSource(t, s, "japscan")
	seedSource(t, s, "mangadex")

	require.NoError(t, s.SetSourcesEnabled(ctx, []string{"japscan"}))

	enabled, err := s.ListEnabledSources(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "mangadex", enabled[0].ID)

	all, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "mangadex", all[0].ID, "enabled sources sort first")
}

func TestListTrackedSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSource(t, s, "weebcentral")
	seedSource(t, s, "mangadex")

	_, err := s.ImportSerie(ctx, makeImport())
	require.NoError(t, err)

	tracked, err := s.ListTrackedSources(ctx, "")
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	assert.Equal(t, "weebcentral", tracked[0].ID)

	tracked, err = s.ListTrackedSources(ctx, "mangadex")
	require.NoError(t, err)
	assert.Empty(t, tracked)
}

func TestCheckCountersAndHealth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedSource(t, s, "weebcentral")
	seedSource(t, s, "mangadex")

	_, err := s.ImportSerie(ctx, makeImport())
	require.NoError(t, err)

	require.NoError(t, s.RecordCheckFailure(ctx, "weebcentral", "01J76XY"))
	require.NoError(t, s.RecordCheckFailure(ctx, "weebcentral", "01J76XY"))
	require.NoError(t, s.RecordCheckFailure(ctx, "weebcentral", "never-imported"))

	entries, err := s.TrackedEntries(ctx, "weebcentral")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ConsecutiveFailures)
	require.NotNil(t, entries[0].LastCheckedAt)

	health, err := s.SourceHealth(ctx)
	require.NoError(t, err)
	require.Len(t, health, 2)
	byID := map[string]domain.SourceHealth{}
	for _, h := range health {
		byID[h.SourceID] = h
	}
	assert.Equal(t, 1, byID["weebcentral"].TotalSeries)
	assert.Equal(t, 1, byID["weebcentral"].FailingCount)
	assert.Zero(t, byID["mangadex"].TotalSeries)
	assert.Nil(t, byID["mangadex"].LastCheckedAt)

	require.NoError(t, s.RecordCheckSuccess(ctx, "weebcentral", "01J76XY"))
	entries, err = s.TrackedEntries(ctx, "weebcentral")
	require.NoError(t, err)
	assert.Zero(t, entries[0].ConsecutiveFailures)
	require.NotNil(t, entries[0].LastCheckedAt)
	assert.True(t, entries[0].LastCheckedAt.Equal(testNow))
}
