package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeries_IsLocked(t *testing.T) {
	s := &Series{LockedFields: []LockedField{LockTitle, LockCover}}

	assert.True(t, s.IsLocked(LockTitle))
	assert.True(t, s.IsLocked(LockCover))
	assert.False(t, s.IsLocked(LockSynopsis))
	assert.False(t, (&Series{}).IsLocked(LockTitle))
}

func TestSeries_IsSoftDeleted(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Series{}).IsSoftDeleted())
	assert.True(t, (&Series{SoftDeletedAt: &now}).IsSoftDeleted())
}

func TestSerieSource_ProcessedCover(t *testing.T) {
	uploaded := "https://cdn.example/covers/abc.webp"
	empty := ""

	tests := []struct {
		name     string
		source   SerieSource
		expected string
	}{
		{"unprocessed", SerieSource{CoverSourceURL: "https://src.example/c.jpg"}, "https://src.example/c.jpg"},
		{"empty upload", SerieSource{CoverSourceURL: "https://src.example/c.jpg", Cover: &empty}, "https://src.example/c.jpg"},
		{"processed", SerieSource{CoverSourceURL: "https://src.example/c.jpg", Cover: &uploaded}, uploaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.source.ProcessedCover())
		})
	}
}

func TestUniqueGenres(t *testing.T) {
	got := UniqueGenres([]Genre{GenreAction, GenreDrama, GenreAction, GenreYuri, GenreDrama})
	assert.Equal(t, []Genre{GenreAction, GenreDrama, GenreYuri}, got)
	assert.Empty(t, UniqueGenres(nil))
}

func TestLanguage_Valid(t *testing.T) {
	for _, l := range AllLanguages {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, Language("Xx").Valid())
	assert.False(t, Language("en").Valid())
}

func TestJobState_IsTerminal(t *testing.T) {
	terminal := map[JobState]bool{JobCompleted: true, JobFailed: true}
	for _, s := range AllJobStates {
		assert.Equal(t, terminal[s], s.IsTerminal(), s)
	}
}
