package domain

import "time"

// FetchStatus is the page-fetch state of a chapter.
type FetchStatus string

// Page fetch states.
const (
	FetchPending           FetchStatus = "Pending"
	FetchInProgress        FetchStatus = "InProgress"
	FetchSuccess           FetchStatus = "Success"
	FetchPartial           FetchStatus = "Partial"
	FetchFailed            FetchStatus = "Failed"
	FetchPermanentlyFailed FetchStatus = "PermanentlyFailed"
	FetchIncomplete        FetchStatus = "Incomplete"
)

// ClassifyFetchStatus derives a chapter status from its page outcome counts.
//
//	success=0  retryable=0  permanent=0  status
//	    -          yes          yes      Success
//	   yes          -           yes      Failed
//	   yes         yes           -       PermanentlyFailed
//	   no           -           no       Incomplete
//	   no          no           yes      Partial
func ClassifyFetchStatus(success, retryable, permanent int) FetchStatus {
	switch {
	case retryable == 0 && permanent == 0:
		return FetchSuccess
	case success == 0 && permanent == 0:
		return FetchFailed
	case success == 0 && retryable == 0:
		return FetchPermanentlyFailed
	case permanent > 0:
		return FetchIncomplete
	default:
		return FetchPartial
	}
}

// Chapter is one ordered unit of a Series as mirrored from one source.
type Chapter struct {
	ID                          string            `json:"id"`
	SeriesID                    string            `json:"series_id"`
	SourceID                    string            `json:"source_id"`
	ExternalID                  string            `json:"external_id"`
	Title                       string            `json:"title"`
	ChapterNumber               float64           `json:"chapter_number"`
	VolumeNumber                *int              `json:"volume_number,omitempty"`
	VolumeName                  *string           `json:"volume_name,omitempty"`
	Language                    Language          `json:"language"`
	DateUpload                  time.Time         `json:"date_upload"`
	ExternalURL                 *string           `json:"external_url,omitempty"`
	PageFetchStatus             FetchStatus       `json:"page_fetch_status"`
	SourceRemovedAt             *time.Time        `json:"source_removed_at,omitempty"`
	SourceRemovalAcknowledgedAt *time.Time        `json:"source_removal_acknowledged_at,omitempty"`
	Enabled                     bool              `json:"enabled"`
	Groups                      []ScanlationGroup `json:"groups,omitempty"`
	CreatedAt                   time.Time         `json:"created_at"`
	UpdatedAt                   time.Time         `json:"updated_at"`
}

// ImageQuality is the assessed health of a processed page image.
type ImageQuality string

// Image qualities.
const (
	QualityHealthy   ImageQuality = "healthy"
	QualityDegraded  ImageQuality = "degraded"
	QualityCorrupted ImageQuality = "corrupted"
)

// PageMetadata describes a processed page object.
type PageMetadata struct {
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	Size        int64  `json:"size,omitempty"`
	BlurHash    string `json:"blurhash,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ChapterPage is one page of a chapter.
type ChapterPage struct {
	ID                string        `json:"id"`
	ChapterID         string        `json:"chapter_id"`
	Index             int           `json:"index"`
	URL               *string       `json:"url,omitempty"`
	SourceURL         *string       `json:"source_url,omitempty"`
	PermanentlyFailed bool          `json:"permanently_failed"`
	Quality           *ImageQuality `json:"quality,omitempty"`
	QualityIssues     []string      `json:"quality_issues,omitempty"`
	Metadata          *PageMetadata `json:"metadata,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Retryable reports whether the page failed but may be re-attempted.
func (p *ChapterPage) Retryable() bool {
	return (p.URL == nil || *p.URL == "") && p.SourceURL != nil && !p.PermanentlyFailed
}

// ScanlationGroup is a translation group credited on chapters.
type ScanlationGroup struct {
	ID         string  `json:"id,omitempty"`
	SourceID   string  `json:"source_id"`
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	URL        *string `json:"url,omitempty"`
}

// PageCounts are the outcome tallies for a chapter's pages.
type PageCounts struct {
	Success   int `json:"success"`
	Retryable int `json:"retryable"`
	Permanent int `json:"permanent"`
}

// Status classifies the counts.
func (c PageCounts) Status() FetchStatus {
	return ClassifyFetchStatus(c.Success, c.Retryable, c.Permanent)
}
