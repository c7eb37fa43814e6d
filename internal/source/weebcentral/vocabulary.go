package weebcentral

import (
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
)

type (
	genre  = source.Pair[domain.Genre]
	status = source.Pair[domain.SerieStatus]
	stype  = source.Pair[domain.SerieType]
	sort   = source.Pair[domain.Sort]
	order  = source.Pair[domain.Order]
)

var vocabulary = &source.Vocabulary{
	Genres: source.NewTable("genre",
		genre{Canonical: domain.GenreAction, Native: "Action"},
		genre{Canonical: domain.GenreAdult, Native: "Adult"},
		genre{Canonical: domain.GenreAdventure, Native: "Adventure"},
		genre{Canonical: domain.GenreComedy, Native: "Comedy"},
		genre{Canonical: domain.GenreDoujinshi, Native: "Doujinshi"},
		genre{Canonical: domain.GenreDrama, Native: "Drama"},
		genre{Canonical: domain.GenreEcchi, Native: "Ecchi"},
		genre{Canonical: domain.GenreFantasy, Native: "Fantasy"},
		genre{Canonical: domain.GenreGenderBender, Native: "GenderBender"},
		genre{Canonical: domain.GenreHarem, Native: "Harem"},
		genre{Canonical: domain.GenreHentai, Native: "Hentai"},
		genre{Canonical: domain.GenreHistorical, Native: "Historical"},
		genre{Canonical: domain.GenreHorror, Native: "Horror"},
		genre{Canonical: domain.GenreIsekai, Native: "Isekai"},
		genre{Canonical: domain.GenreJosei, Native: "Josei"},
		genre{Canonical: domain.GenreLolicon, Native: "Lolicon"},
		genre{Canonical: domain.GenreMartialArts, Native: "MartialArts"},
		genre{Canonical: domain.GenreMature, Native: "Mature"},
		genre{Canonical: domain.GenreMecha, Native: "Mecha"},
		genre{Canonical: domain.GenreMystery, Native: "Mystery"},
		genre{Canonical: domain.GenrePsychological, Native: "Psychological"},
		genre{Canonical: domain.GenreRomance, Native: "Romance"},
		genre{Canonical: domain.GenreSchoolLife, Native: "SchoolLife"},
		genre{Canonical: domain.GenreSciFi, Native: "SciFi"},
		genre{Canonical: domain.GenreSeinen, Native: "Seinen"},
		genre{Canonical: domain.GenreShotacon, Native: "Shotacon"},
		genre{Canonical: domain.GenreShoujo, Native: "Shoujo"},
		genre{Canonical: domain.GenreShoujoAi, Native: "ShoujoAi"},
		genre{Canonical: domain.GenreShounen, Native: "Shounen"},
		genre{Canonical: domain.GenreShounenAi, Native: "ShounenAi"},
		genre{Canonical: domain.GenreSliceOfLife, Native: "SliceOfLife"},
		genre{Canonical: domain.GenreSmut, Native: "Smut"},
		genre{Canonical: domain.GenreSports, Native: "Sports"},
		genre{Canonical: domain.GenreSupernatural, Native: "Supernatural"},
		genre{Canonical: domain.GenreTragedy, Native: "Tragedy"},
		genre{Canonical: domain.GenreYaoi, Native: "Yaoi"},
		genre{Canonical: domain.GenreYuri, Native: "Yuri"},
		genre{Canonical: domain.GenreOther, Native: "Other"},
	),
	Status: source.NewTable("status",
		status{Canonical: domain.StatusOngoing, Native: "Ongoing"},
		status{Canonical: domain.StatusCompleted, Native: "Complete"},
		status{Canonical: domain.StatusHiatus, Native: "Hiatus"},
		status{Canonical: domain.StatusCanceled, Native: "Canceled"},
	),
	Types: source.NewTable("type",
		stype{Canonical: domain.TypeManga, Native: "Manga"},
		stype{Canonical: domain.TypeManhwa, Native: "Manhwa"},
		stype{Canonical: domain.TypeManhua, Native: "Manhua"},
		stype{Canonical: domain.TypeOel, Native: "OEL"},
	),
	Sorts: source.NewTable("sort",
		sort{Canonical: domain.SortRelevance, Native: "Best Match"},
		sort{Canonical: domain.SortPopularity, Native: "Popularity"},
		sort{Canonical: domain.SortLatest, Native: "Latest Updates"},
		sort{Canonical: domain.SortAlphabetic, Native: "Alphabet"},
	),
	Orders: source.NewTable("order",
		order{Canonical: domain.OrderAsc, Native: "Ascending"},
		order{Canonical: domain.OrderDesc, Native: "Descending"},
	),
}
