package domain

import "time"

// SupportedGenreFilter describes which genre filters a source accepts.
type SupportedGenreFilter struct {
	Include        bool    `json:"include"`
	Exclude        bool    `json:"exclude"`
	AcceptedValues []Genre `json:"accepted_values"`
}

// SupportedFilters describes the search filters a source accepts.
type SupportedFilters struct {
	Query   bool                 `json:"query"`
	Order   []Order              `json:"order"`
	Sort    []Sort               `json:"sort"`
	Artists bool                 `json:"artists"`
	Authors bool                 `json:"authors"`
	Types   []SerieType          `json:"types"`
	Genres  SupportedGenreFilter `json:"genres"`
	Status  []SerieStatus        `json:"status"`
}

// Source is the registry row for one catalog adapter.
type Source struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	URL                   string           `json:"url"`
	Icon                  string           `json:"icon"`
	Version               string           `json:"version"`
	NSFW                  bool             `json:"nsfw"`
	Enabled               bool             `json:"enabled"`
	Languages             []Language       `json:"languages"`
	SearchFilters         SupportedFilters `json:"search_filters"`
	Timeout               time.Duration    `json:"timeout"`
	CanBlockScraping      bool             `json:"can_block_scraping"`
	MinimumUpdateInterval time.Duration    `json:"minimum_update_interval"`
	RateLimitMax          int              `json:"rate_limit_max"`
	RateLimitDuration     time.Duration    `json:"rate_limit_duration"`
	LastFetchFingerprint  []string         `json:"last_fetch_fingerprint"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// RequestInterval is the minimum spacing between two requests allowed by the
// source's rate limit declaration.
func (s *Source) RequestInterval() time.Duration {
	if s.RateLimitMax <= 0 {
		return s.RateLimitDuration
	}
	return s.RateLimitDuration / time.Duration(s.RateLimitMax)
}

// SourceHealth aggregates per-source tracking state.
type SourceHealth struct {
	SourceID      string     `json:"source_id"`
	Name          string     `json:"name"`
	Enabled       bool       `json:"enabled"`
	TotalSeries   int        `json:"total_series"`
	FailingCount  int        `json:"failing_count"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// TrackedEntry is the scheduling view of one mirror.
type TrackedEntry struct {
	SerieSourceID       string     `json:"serie_source_id"`
	ExternalID          string     `json:"external_id"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
}
