package queue

// Job names used as the Name field of enqueued jobs.
const (
	JobInsert           = "insert"
	JobChapterUpdate    = "UPDATE"
	JobPageRetry        = "retry"
	JobCoverSource      = "SOURCE"
	JobCoverCustom      = "CUSTOM"
	JobIndexUpdate      = "UPDATE"
	JobIndexDelete      = "DELETE"
	JobSoftDelete       = "SOFT_DELETE"
	JobHardDelete       = "HARD_DELETE"
	JobFetchLatest      = "FETCH_LATEST"
	JobRefreshAll       = "REFRESH_ALL"
	JobRetryFailedPages = "RETRY_FAILED_PAGES"
	JobSyncSources      = "SYNC"
)

// SerieInserterPayload imports or refreshes one catalog entry.
type SerieInserterPayload struct {
	SourceID      string `json:"source_id" validate:"required"`
	SourceSerieID string `json:"source_serie_id" validate:"required"`
}

// SerieInserterResult is stored on completed serie-inserter jobs.
type SerieInserterResult struct {
	SerieID        string `json:"serie_id"`
	ChaptersQueued int    `json:"chapters_queued"`
}

// ChapterDataPayload fetches and mirrors every page of one chapter.
type ChapterDataPayload struct {
	SerieID   string `json:"serie_id" validate:"required"`
	SourceID  string `json:"source_id" validate:"required"`
	ChapterID string `json:"chapter_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=UPDATE"`
}

// PageRetryPayload retries the retryable pages of one chapter.
type PageRetryPayload struct {
	ChapterID string `json:"chapter_id" validate:"required"`
}

// CoverUpdatePayload processes a mirror's cover or a custom cover upload.
type CoverUpdatePayload struct {
	Type          string `json:"type" validate:"required,oneof=SOURCE CUSTOM"`
	SerieSourceID string `json:"serie_source_id,omitempty" validate:"required_if=Type SOURCE"`
	SerieID       string `json:"serie_id,omitempty" validate:"required_if=Type CUSTOM"`
	ImageURL      string `json:"image_url,omitempty" validate:"required_if=Type CUSTOM,omitempty,http_url"`
}

// IndexerPayload recomputes or removes a series' search document.
type IndexerPayload struct {
	SerieID string `json:"serie_id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=UPDATE DELETE"`
}

// DeleteSeriePayload drives the soft and hard delete lifecycle.
type DeleteSeriePayload struct {
	SerieID string `json:"serie_id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=SOFT_DELETE HARD_DELETE"`
}

// UpdateSchedulerPayload selects a scheduler task, optionally scoped to one source.
type UpdateSchedulerPayload struct {
	Type     string `json:"type" validate:"required,oneof=FETCH_LATEST REFRESH_ALL RETRY_FAILED_PAGES"`
	SourceID string `json:"source_id,omitempty"`
}

// SourcesSyncPayload upserts the source registry into the catalog.
type SourcesSyncPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Deterministic job ids for jobs that must not be queued twice.

// PageRetryJobID is the single retry job of a chapter.
func PageRetryJobID(chapterID string) string { return "page-retry-" + chapterID }

// HardDeleteJobID is the pending hard delete of a soft-deleted series.
func HardDeleteJobID(serieID string) string { return serieID + "-hard_delete" }

// SerieInserterJobID collapses repeated imports of one catalog entry while
// the first is still queued.
func SerieInserterJobID(sourceID, externalID string) string {
	return "serie-inserter-" + sourceID + "-" + externalID
}
