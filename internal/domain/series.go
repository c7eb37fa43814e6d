package domain

import (
	"slices"
	"time"
)

// LockedField names a display field pinned by a user.
type LockedField string

// Lockable fields.
const (
	LockTitle    LockedField = "title"
	LockSynopsis LockedField = "synopsis"
	LockCover    LockedField = "cover"
	LockStatus   LockedField = "status"
	LockType     LockedField = "type"
)

// Series is the canonical aggregate built from one or more source mirrors.
type Series struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Synopsis           *string       `json:"synopsis,omitempty"`
	Cover              *string       `json:"cover,omitempty"`
	CustomCover        *string       `json:"custom_cover,omitempty"`
	Status             []SerieStatus `json:"status"`
	Type               SerieType     `json:"type"`
	LockedFields       []LockedField `json:"locked_fields"`
	SoftDeletedAt      *time.Time    `json:"soft_deleted_at,omitempty"`
	PendingDeleteJobID *string       `json:"pending_delete_job_id,omitempty"`
	RefreshedAt        *time.Time    `json:"refreshed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsLocked reports whether a display field is pinned.
func (s *Series) IsLocked(f LockedField) bool {
	return slices.Contains(s.LockedFields, f)
}

// IsSoftDeleted reports whether the series is pending hard deletion.
func (s *Series) IsSoftDeleted() bool {
	return s.SoftDeletedAt != nil
}

// SerieSource is one catalog's mirror of a Series.
type SerieSource struct {
	ID                  string        `json:"id"`
	SeriesID            string        `json:"series_id"`
	SourceID            string        `json:"source_id"`
	ExternalID          string        `json:"external_id"`
	Title               MultiLanguage `json:"title"`
	Synopsis            MultiLanguage `json:"synopsis"`
	AlternateTitles     MultiLanguage `json:"alternate_titles"`
	CoverSourceURL      string        `json:"cover_source_url"`
	Cover               *string       `json:"cover,omitempty"`
	ExternalURL         *string       `json:"external_url,omitempty"`
	Status              []SerieStatus `json:"status"`
	Type                SerieType     `json:"type"`
	Genres              []Genre       `json:"genres"`
	Authors             []string      `json:"authors"`
	Artists             []string      `json:"artists"`
	IsPrimary           bool          `json:"is_primary"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCheckedAt       *time.Time    `json:"last_checked_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ProcessedCover returns the uploaded cover, or the raw source URL when the
// cover has not been processed yet.
func (s *SerieSource) ProcessedCover() string {
	if s.Cover != nil && *s.Cover != "" {
		return *s.Cover
	}
	return s.CoverSourceURL
}
