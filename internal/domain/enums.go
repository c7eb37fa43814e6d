package domain

// Language is a canonical catalog language.
type Language string

// Supported languages.
const (
	LanguageEn   Language = "En"
	LanguageJp   Language = "Jp"
	LanguageJpRo Language = "JpRo"
	LanguageFr   Language = "Fr"
	LanguageKo   Language = "Ko"
	LanguageKoRo Language = "KoRo"
	LanguageZhHk Language = "ZhHk"
	LanguageZh   Language = "Zh"
)

// AllLanguages lists every language in declaration order.
var AllLanguages = []Language{
	LanguageEn, LanguageJp, LanguageJpRo, LanguageFr,
	LanguageKo, LanguageKoRo, LanguageZhHk, LanguageZh,
}

// Valid reports whether l is a known language.
func (l Language) Valid() bool {
	for _, v := range AllLanguages {
		if v == l {
			return true
		}
	}
	return false
}

// SerieStatus is a canonical publication status.
type SerieStatus string

// Serie statuses.
const (
	StatusOngoing    SerieStatus = "Ongoing"
	StatusCompleted  SerieStatus = "Completed"
	StatusHiatus     SerieStatus = "Hiatus"
	StatusCanceled   SerieStatus = "Canceled"
	StatusPublishing SerieStatus = "Publishing"
	StatusPublished  SerieStatus = "Published"
	StatusScanlating SerieStatus = "Scanlating"
	StatusScanlated  SerieStatus = "Scanlated"
	StatusUnknown    SerieStatus = "Unknown"
)

// AllStatuses lists every serie status.
var AllStatuses = []SerieStatus{
	StatusOngoing, StatusCompleted, StatusHiatus, StatusCanceled, StatusPublishing,
	StatusPublished, StatusScanlating, StatusScanlated, StatusUnknown,
}

// SerieType is the canonical publication format.
type SerieType string

// Serie types.
const (
	TypeManga      SerieType = "Manga"
	TypeManhwa     SerieType = "Manhwa"
	TypeManhua     SerieType = "Manhua"
	TypeWebtoon    SerieType = "Webtoon"
	TypeLightnovel SerieType = "Lightnovel"
	TypeNovel      SerieType = "Novel"
	TypeDoujinshi  SerieType = "Doujinshi"
	TypeComic      SerieType = "Comic"
	TypeOel        SerieType = "Oel"
	TypeUnknown    SerieType = "Unknown"
)

// AllTypes lists every serie type.
var AllTypes = []SerieType{
	TypeManga, TypeManhwa, TypeManhua, TypeWebtoon, TypeLightnovel,
	TypeNovel, TypeDoujinshi, TypeComic, TypeOel, TypeUnknown,
}

// Order is a listing sort direction.
type Order string

// Orders.
const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// Sort is a listing sort key.
type Sort string

// Sort keys.
const (
	SortLatest     Sort = "Latest"
	SortPopularity Sort = "Popularity"
	SortRelevance  Sort = "Relevance"
	SortAlphabetic Sort = "Alphabetic"
)
