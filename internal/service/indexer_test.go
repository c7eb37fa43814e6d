package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

func strPtr(s string) *string { return &s }

func TestDisplay(t *testing.T) {
	policy := domain.LanguagePolicy{
		Enabled:  []domain.Language{domain.LanguageEn, domain.LanguageFr},
		Primary:  domain.LanguageFr,
		Fallback: domain.LanguageEn,
	}
	primary := &domain.SerieSource{
		Title:          domain.MultiLanguage{domain.LanguageEn: {"Frieren"}, domain.LanguageFr: {"Frieren FR"}},
		Synopsis:       domain.MultiLanguage{domain.LanguageEn: {"An elf mage."}},
		CoverSourceURL: "https://img.example/raw.jpg",
		Cover:          strPtr("http://cdn.test/cover.webp"),
		Status:         []domain.SerieStatus{domain.StatusCompleted},
		Type:           domain.TypeManga,
	}
	base := func() *domain.Series {
		return &domain.Series{
			Title:       "Pinned",
			Synopsis:    strPtr("Pinned synopsis"),
			Cover:       strPtr("http://cdn.test/old.webp"),
			CustomCover: strPtr("http://cdn.test/custom.webp"),
			Status:      []domain.SerieStatus{domain.StatusOngoing},
			Type:        domain.TypeManhwa,
		}
	}

	tests := []struct {
		name   string
		locked []domain.LockedField
		check  func(t *testing.T, d sqlite.SeriesDisplay)
	}{
		{
			name: "nothing locked follows primary mirror",
			check: func(t *testing.T, d sqlite.SeriesDisplay) {
				assert.Equal(t, "Frieren FR", d.Title)
				require.NotNil(t, d.Synopsis)
				assert.Equal(t, "An elf mage.", *d.Synopsis)
				assert.Equal(t, "http://cdn.test/cover.webp", *d.Cover)
				assert.Equal(t, []domain.SerieStatus{domain.StatusCompleted}, d.Status)
				assert.Equal(t, domain.TypeManga, d.Type)
			},
		},
		{
			name:   "locked fields keep their value",
			locked: []domain.LockedField{domain.LockTitle, domain.LockSynopsis, domain.LockStatus, domain.LockType},
			check: func(t *testing.T, d sqlite.SeriesDisplay) {
				assert.Equal(t, "Pinned", d.Title)
				assert.Equal(t, "Pinned synopsis", *d.Synopsis)
				assert.Equal(t, []domain.SerieStatus{domain.StatusOngoing}, d.Status)
				assert.Equal(t, domain.TypeManhwa, d.Type)
				assert.Equal(t, "http://cdn.test/cover.webp", *d.Cover)
			},
		},
		{
			name:   "locked cover shows custom cover",
			locked: []domain.LockedField{domain.LockCover},
			check: func(t *testing.T, d sqlite.SeriesDisplay) {
				assert.Equal(t, "http://cdn.test/custom.webp", *d.Cover)
				assert.Equal(t, "Frieren FR", d.Title)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := base()
			series.LockedFields = tt.locked
			tt.check(t, Display(series, primary, policy))
		})
	}

	t.Run("locked cover without custom cover keeps current", func(t *testing.T) {
		series := base()
		series.CustomCover = nil
		series.LockedFields = []domain.LockedField{domain.LockCover}
		d := Display(series, primary, policy)
		assert.Equal(t, "http://cdn.test/old.webp", *d.Cover)
	})

	t.Run("unprocessed cover falls back to source url", func(t *testing.T) {
		raw := *primary
		raw.Cover = nil
		d := Display(base(), &raw, policy)
		assert.Equal(t, "https://img.example/raw.jpg", *d.Cover)
	})
}

func TestPrimaryMirror(t *testing.T) {
	a := &domain.SerieSource{ID: "a"}
	b := &domain.SerieSource{ID: "b", IsPrimary: true}
	assert.Equal(t, "b", primaryMirror([]*domain.SerieSource{a, b}).ID)
	assert.Equal(t, "a", primaryMirror([]*domain.SerieSource{a}).ID)
}

func TestIndexerUpdateAndSearch(t *testing.T) {
	h := newHarness(t)
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "")
	result := h.importSerie(t, "abc")
	indexer := h.indexer()

	_, err := indexer.Handle(h.ctx, jobFor(t, queue.Indexer, queue.IndexerPayload{SerieID: result.SerieID, Type: queue.JobIndexUpdate}))
	require.NoError(t, err)

	res, err := indexer.Search(h.ctx, search.Params{Query: "blue"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, result.SerieID, res.Hits[0].ID)
	assert.Equal(t, "Blue Period", res.Hits[0].Title)

	_, err = indexer.Handle(h.ctx, jobFor(t, queue.Indexer, queue.IndexerPayload{SerieID: result.SerieID, Type: queue.JobIndexDelete}))
	require.NoError(t, err)
	res, err = indexer.Search(h.ctx, search.Params{Query: "blue"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestIndexerUpdate_MissingSeriesIsRemoved(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.indexer().Update(h.ctx, "missing"))
}

func TestIndexerReindex(t *testing.T) {
	h := newHarness(t)
	h.syncSources(t)
	h.source.addSerie("abc", "Blue Period", "")
	h.source.addSerie("def", "Dungeon Meshi", "")
	h.importSerie(t, "abc")
	h.importSerie(t, "def")

	n, err := h.indexer().Reindex(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := h.indexer().Search(h.ctx, search.Params{Query: "dungeon"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Dungeon Meshi", res.Hits[0].Title)
}
