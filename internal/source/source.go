// Package source defines the contract every catalog adapter implements, the
// vocabulary tables translating catalog strings into canonical values and the
// registry holding the active adapters.
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Source is one external catalog.
type Source interface {
	Info() Information
	APIInfo() APIInformation

	// ParseURL extracts the catalog id of a serie from a public URL.
	ParseURL(rawURL string) (externalID string, ok bool)
	// SerieURL is the public page of a serie.
	SerieURL(externalID string) string

	FetchPopular(ctx context.Context, page int) (Page[SearchItem], error)
	FetchLatest(ctx context.Context, page int) (Page[SearchItem], error)
	FetchSearch(ctx context.Context, page int, filter SearchFilter) (Page[SearchItem], error)
	FetchDetail(ctx context.Context, externalID string) (*Serie, error)
	FetchChapters(ctx context.Context, externalID string) (*ChapterList, error)
	FetchChapterPages(ctx context.Context, externalID, chapterID string) ([]PageDescriptor, error)
}

// Information describes a catalog to users and to the registry.
type Information struct {
	ID               string
	Name             string
	URL              string
	Icon             string
	Version          string
	NSFW             bool
	UpdatedAt        time.Time
	Languages        []domain.Language
	EnabledLanguages []domain.Language
	SearchFilters    domain.SupportedFilters
}

// APIInformation is how the catalog must be called.
type APIInformation struct {
	BaseURL               string
	Headers               http.Header
	MinimumUpdateInterval time.Duration
	Timeout               time.Duration
	CanBlockScraping      bool
	// RateLimitMax requests are allowed per RateLimitDuration.
	RateLimitMax      int
	RateLimitDuration time.Duration
}

// Page is one page of a listing.
type Page[T any] struct {
	Items       []T
	HasNextPage bool
}

// SearchItem is a listing entry.
type SearchItem struct {
	ID    string
	Title domain.MultiLanguage
	Cover string
}

// IDs returns the catalog ids of items in listing order.
func IDs(items []SearchItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

// SearchFilter narrows a catalog search. Zero values mean "no constraint".
type SearchFilter struct {
	Query         string
	Sort          domain.Sort
	Order         domain.Order
	Artists       []string
	Authors       []string
	Types         []domain.SerieType
	IncludeGenres []domain.Genre
	ExcludeGenres []domain.Genre
	Status        []domain.SerieStatus
	// OnlyEnabledTranslations restricts results to series translated into an
	// enabled language, when the catalog supports it.
	OnlyEnabledTranslations bool
}

// Serie is a catalog's full record of one serie.
type Serie struct {
	ID              string
	Title           domain.MultiLanguage
	AlternateTitles domain.MultiLanguage
	Synopsis        domain.MultiLanguage
	Cover           string
	Status          []domain.SerieStatus
	Type            domain.SerieType
	Genres          []domain.Genre
	Authors         []string
	Artists         []string
	ExternalURL     string
}

// Group is a scanlation group credited on a chapter.
type Group struct {
	ID   string
	Name string
	URL  string
}

// Chapter is a catalog's record of one chapter.
type Chapter struct {
	ID            string
	Title         domain.MultiLanguage
	ChapterNumber float64
	VolumeNumber  *int
	VolumeName    *string
	Language      domain.Language
	DateUpload    time.Time
	ExternalURL   string
	Groups        []Group
}

// UnknownUploadDate stands in for a chapter whose catalog reports no usable
// upload date. It is fixed so a reimport sees the same value.
var UnknownUploadDate = time.Unix(0, 0).UTC()

// ChapterList is every chapter of a serie plus the numbering gaps detected in it.
type ChapterList struct {
	Chapters        []Chapter
	MissingChapters []float64
}

// PageDescriptor locates one page image. Index is zero-based and contiguous.
type PageDescriptor struct {
	Index int
	URL   string
}

// Row converts adapter metadata into the registry row persisted in the catalog.
func Row(s Source, enabled bool) *domain.Source {
	info, api := s.Info(), s.APIInfo()
	return &domain.Source{
		ID:                    info.ID,
		Name:                  info.Name,
		URL:                   info.URL,
		Icon:                  info.Icon,
		Version:               info.Version,
		NSFW:                  info.NSFW,
		Enabled:               enabled,
		Languages:             info.Languages,
		SearchFilters:         info.SearchFilters,
		Timeout:               api.Timeout,
		CanBlockScraping:      api.CanBlockScraping,
		MinimumUpdateInterval: api.MinimumUpdateInterval,
		RateLimitMax:          api.RateLimitMax,
		RateLimitDuration:     api.RateLimitDuration,
	}
}

// EnabledLanguages intersects the catalog's languages with the enabled set,
// keeping the catalog's order.
func EnabledLanguages(supported, enabled []domain.Language) []domain.Language {
	out := make([]domain.Language, 0, len(supported))
	for _, s := range supported {
		for _, e := range enabled {
			if s == e {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
