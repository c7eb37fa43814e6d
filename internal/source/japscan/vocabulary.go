package japscan

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
		genre{Canonical: domain.GenreAdventure, Native: "Aventure"},
		genre{Canonical: domain.GenreComedy, Native: "Comédie"},
		genre{Canonical: domain.GenreDrama, Native: "Drame"},
		genre{Canonical: domain.GenreEcchi, Native: "Ecchi"},
		genre{Canonical: domain.GenreFantasy, Native: "Fantastique"},
		genre{Canonical: domain.GenreGore, Native: "Gore"},
		genre{Canonical: domain.GenreHarem, Native: "Harem"},
		genre{Canonical: domain.GenreHistorical, Native: "Historique"},
		genre{Canonical: domain.GenreHorror, Native: "Horreur"},
		genre{Canonical: domain.GenreIsekai, Native: "Isekai"},
		genre{Canonical: domain.GenreJosei, Native: "Josei"},
		genre{Canonical: domain.GenreMartialArts, Native: "Arts Martiaux"},
		genre{Canonical: domain.GenreMature, Native: "Mature"},
		genre{Canonical: domain.GenreMecha, Native: "Mecha"},
		genre{Canonical: domain.GenreMilitary, Native: "Militaire"},
		genre{Canonical: domain.GenreMystery, Native: "Mystère"},
		genre{Canonical: domain.GenrePsychological, Native: "Psychologique"},
		genre{Canonical: domain.GenreRomance, Native: "Romance"},
		genre{Canonical: domain.GenreSchoolLife, Native: "Vie Scolaire"},
		genre{Canonical: domain.GenreSciFi, Native: "Sci-Fi"},
		genre{Canonical: domain.GenreSeinen, Native: "Seinen"},
		genre{Canonical: domain.GenreShoujo, Native: "Shoujo"},
		genre{Canonical: domain.GenreShounen, Native: "Shounen"},
		genre{Canonical: domain.GenreSliceOfLife, Native: "Tranche de vie"},
		genre{Canonical: domain.GenreSports, Native: "Sports"},
		genre{Canonical: domain.GenreSupernatural, Native: "Surnaturel"},
		genre{Canonical: domain.GenreThriller, Native: "Thriller"},
		genre{Canonical: domain.GenreTragedy, Native: "Tragédie"},
	),
	Status: source.NewTable("status",
		status{Canonical: domain.StatusOngoing, Native: "En Cours"},
		status{Canonical: domain.StatusCompleted, Native: "Terminé"},
	),
	// Types follow the first path segment of a serie id.
	Types: source.NewTable("type",
		stype{Canonical: domain.TypeManga, Native: "manga"},
		stype{Canonical: domain.TypeManhwa, Native: "manhwa"},
		stype{Canonical: domain.TypeManhua, Native: "manhua"},
	),
	Sorts: source.NewTable("sort",
		sort{Canonical: domain.SortPopularity, Native: "popular"},
		sort{Canonical: domain.SortLatest, Native: "updated"},
		sort{Canonical: domain.SortAlphabetic, Native: "name"},
	),
	Orders: source.NewTable("order",
		order{Canonical: domain.OrderAsc, Native: "asc"},
		order{Canonical: domain.OrderDesc, Native: "desc"},
	),
}
