package mangadex

import (
	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/source"
)

type (
	tag    = source.Pair[domain.Genre]
	status = source.Pair[domain.SerieStatus]
	sort   = source.Pair[domain.Sort]
	order  = source.Pair[domain.Order]
	lang   = source.Pair[domain.Language]
)

// languages maps canonical languages to MangaDex locale codes.
var languages = source.NewTable("language",
	lang{Canonical: domain.LanguageEn, Native: "en"},
	lang{Canonical: domain.LanguageFr, Native: "fr"},
	lang{Canonical: domain.LanguageKo, Native: "ko"},
	lang{Canonical: domain.LanguageKoRo, Native: "ko-ro"},
	lang{Canonical: domain.LanguageJp, Native: "ja"},
	lang{Canonical: domain.LanguageJpRo, Native: "ja-ro"},
	lang{Canonical: domain.LanguageZhHk, Native: "zh-hk"},
	lang{Canonical: domain.LanguageZh, Native: "zh"},
)

// Genres are MangaDex tag UUIDs.
var vocabulary = &source.Vocabulary{
	Genres: source.NewTable("genre",
		tag{Canonical: domain.GenreGyaru, Native: "fad12b5e-68ba-460e-b933-9ae8318f5b65"},
		tag{Canonical: domain.GenreTragedy, Native: "f8f62932-27da-4fe4-8ee1-6779a8c5edba"},
		tag{Canonical: domain.GenreFullColor, Native: "f5ba408b-0e7a-484d-8d49-4e9125ac96de"},
		tag{Canonical: domain.GenreMusic, Native: "f42fbf9e-188a-447b-9fdc-f19dc1e4d685"},
		tag{Canonical: domain.GenreAdaptation, Native: "f4122d1c-3b44-44d0-9936-ff7502c39ad3"},
		tag{Canonical: domain.GenreMystery, Native: "ee968100-4191-4968-93d3-f82d72be7e46"},
		tag{Canonical: domain.GenreSupernatural, Native: "eabc5b4c-6aff-42f3-b657-3e90cbd00b75"},
		tag{Canonical: domain.GenreCooking, Native: "ea2bc92d-1c26-4930-9b7c-d5c0dc1b6869"},
		tag{Canonical: domain.GenreAliens, Native: "e64f6742-c834-471d-8d72-dd51fc02b835"},
		tag{Canonical: domain.GenreSliceOfLife, Native: "e5301a23-ebd9-49dd-a0cb-2add944c7fe9"},
		tag{Canonical: domain.GenreWebComic, Native: "e197df38-d0e7-43b5-9b09-2842d0c326dd"},
		tag{Canonical: domain.GenrePolice, Native: "df33b754-73a3-4c54-80e6-1a74a8058539"},
		tag{Canonical: domain.GenreAwardWinning, Native: "0a39b5a1-b235-4886-a747-1d05d216532d"},
		tag{Canonical: domain.GenreReincarnation, Native: "0bc90acb-ccc1-44ca-a34a-b9f3a73259d0"},
		tag{Canonical: domain.GenreGenderSwap, Native: "2bd2e8d0-f146-434a-9b51-fc9ff2c5fe6a"},
		tag{Canonical: domain.GenreLolicon, Native: "2d1f5d56-a1e5-4d0d-a961-2193588b08ec"},
		tag{Canonical: domain.GenrePsychological, Native: "3b60b75c-a2d7-4860-ab56-05f391bb889c"},
		tag{Canonical: domain.GenreGhost, Native: "3bb26d85-09d5-4d2e-880c-c34b974339e9"},
		tag{Canonical: domain.GenreAnimals, Native: "3de8c75d-8ee3-48ff-98ee-e20a65c86451"},
		tag{Canonical: domain.GenreLongStrip, Native: "3e2b8dae-350e-4ab8-a8ce-016e844b9f0d"},
		tag{Canonical: domain.GenreComedy, Native: "4d32cc48-9f00-4cca-9b5a-a839f0764984"},
		tag{Canonical: domain.GenreIncest, Native: "5bd0e105-4481-44ca-b6e7-7544da56b1a3"},
		tag{Canonical: domain.GenreCrime, Native: "5ca48985-9a9d-4bd8-be29-80dc0303db72"},
		tag{Canonical: domain.GenreSurvival, Native: "5fff9cde-849c-4d78-aab0-0d52b2ee1d25"},
		tag{Canonical: domain.GenreFanColored, Native: "7b2ce280-79ef-4c09-9b58-12b7c23a9b78"},
		tag{Canonical: domain.GenreVirtualReality, Native: "8c86611e-fab7-4986-9dec-d1a2f44acdd5"},
		tag{Canonical: domain.GenreCrossdressing, Native: "9ab53f92-3eed-4e9b-903a-917c86035ee3"},
		tag{Canonical: domain.GenreMonsters, Native: "36fd93ea-e8b8-445e-b836-358f02b3d33d"},
		tag{Canonical: domain.GenreAnthology, Native: "51d83883-4103-437c-b4b1-731cb73d786c"},
		tag{Canonical: domain.GenreMagicalGirls, Native: "81c836c9-914a-4eca-981a-560dad663e73"},
		tag{Canonical: domain.GenreMafia, Native: "85daba54-a71c-4554-8a28-9901a8b0afad"},
		tag{Canonical: domain.GenreAdventure, Native: "87cc87cd-a395-47af-b27a-93258283bbc6"},
		tag{Canonical: domain.GenreOfficeWorkers, Native: "92d6d951-ca5e-429c-ac78-451071cbf064"},
		tag{Canonical: domain.GenreOneShot, Native: "0234a31e-a729-4e28-9d6a-3f87c4966b9e"},
		tag{Canonical: domain.GenreSciFi, Native: "256c8bd9-4904-4360-bf4f-508a76d67183"},
		tag{Canonical: domain.GenreTimeTravel, Native: "292e862b-2d17-4062-90a2-0356caa4ae27"},
		tag{Canonical: domain.GenreAction, Native: "391b0423-d847-456f-aff0-8b0cfc03066b"},
		tag{Canonical: domain.GenreRomance, Native: "423e2eae-a7a2-4a8b-ac03-a8351462d71d"},
		tag{Canonical: domain.GenreNinja, Native: "489dd859-9b61-4c37-af75-5b18e88daafc"},
		tag{Canonical: domain.GenreZombies, Native: "631ef465-9aba-4afb-b0fc-ea10efe274a8"},
		tag{Canonical: domain.GenreMartialArts, Native: "799c202e-7daa-44eb-9cf7-8a3c0441531e"},
		tag{Canonical: domain.GenreSelfPublished, Native: "891cf039-b895-47f0-9229-bef4c96eccd4"},
		tag{Canonical: domain.GenreBoysLove, Native: "5920b825-4181-4a17-beeb-9918b0ff7a30"},
		tag{Canonical: domain.GenreSuperhero, Native: "7064a261-a137-4d3a-8848-2d385de3a99c"},
		tag{Canonical: domain.GenreVideoGames, Native: "9438db5a-7e2a-4ac0-b39e-e0d95a34b8a8"},
		tag{Canonical: domain.GenreTraditionalGames, Native: "31932a7e-5b8e-49a6-9f12-2afa39dc544c"},
		tag{Canonical: domain.GenreMecha, Native: "50880a9d-5440-4732-9afb-8f457127e836"},
		tag{Canonical: domain.GenreReverseHarem, Native: "65761a2a-415e-47f3-bef2-a9dababba7a6"},
		tag{Canonical: domain.GenreSports, Native: "69964a64-2f90-4d33-beeb-f3ed2875eb4c"},
		tag{Canonical: domain.GenreSexualViolence, Native: "97893a4c-12af-4dac-b6be-0dffb353568e"},
		tag{Canonical: domain.GenreOfficialColored, Native: "320831a8-4026-470b-94f6-8353740e6f04"},
		tag{Canonical: domain.GenreThriller, Native: "07251805-a27e-4d59-b488-f0bfbec15168"},
		tag{Canonical: domain.GenrePostApocalyptic, Native: "9467335a-1b83-4497-9231-765337a00b96"},
		tag{Canonical: domain.GenreHistorical, Native: "33771934-028e-4cb3-8744-691e866a923e"},
		tag{Canonical: domain.GenreDemons, Native: "39730448-9a5f-48a2-85b0-a70db87b1233"},
		tag{Canonical: domain.GenreSamurai, Native: "81183756-1453-4c81-aa9e-f6e1b63be016"},
		tag{Canonical: domain.GenreMagic, Native: "a1f53773-c69a-4ce5-8cab-fffcd90b1565"},
		tag{Canonical: domain.GenreGirlsLove, Native: "a3c67850-4684-404e-9b7f-c69850ee5da6"},
		tag{Canonical: domain.GenreHarem, Native: "aafb99c1-7f60-43fa-b75f-fc9502ce29c7"},
		tag{Canonical: domain.GenreMilitary, Native: "ac72833b-c4e9-4878-b9db-6c8a4a99444a"},
		tag{Canonical: domain.GenreWuxia, Native: "acc803a4-c95a-4c22-86fc-eb6b582d82a2"},
		tag{Canonical: domain.GenreIsekai, Native: "ace04997-f6bd-436e-b261-779182193d3d"},
		tag{Canonical: domain.GenrePhilosophical, Native: "b1e97889-25b4-4258-b28b-cd7f4d28ea9b"},
		tag{Canonical: domain.GenreDrama, Native: "b9af3a63-f058-46de-a9a0-e0c13906197a"},
		tag{Canonical: domain.GenreFourKoma, Native: "b11fda93-8f1d-4bef-b2ed-8803d3733170"},
		tag{Canonical: domain.GenreDoujinshi, Native: "b13b2a48-c720-44a9-9c77-39c9979373fb"},
		tag{Canonical: domain.GenreGore, Native: "b29d6a3d-1569-4e7a-8caf-7557bc92cd5d"},
		tag{Canonical: domain.GenreMedical, Native: "c8cbe35b-1b2b-4a3f-9c37-db84c4514856"},
		tag{Canonical: domain.GenreSchoolLife, Native: "caaa44eb-cd40-4177-b930-79d3ef2afe87"},
		tag{Canonical: domain.GenreHorror, Native: "cdad7e68-1419-41dd-bdce-27753074a640"},
		tag{Canonical: domain.GenreFantasy, Native: "cdc58593-87dd-415e-bbc0-2ec27bf404cc"},
		tag{Canonical: domain.GenreVampires, Native: "d7d1730f-6eb0-4ba6-9437-602cac38664c"},
		tag{Canonical: domain.GenreVillainess, Native: "d14322ac-4d6f-4e9b-afd9-629d5f4d8a41"},
		tag{Canonical: domain.GenreDelinquents, Native: "da2d50ca-3018-4cc0-ac7a-6b7d472a29ea"},
		tag{Canonical: domain.GenreMonsterGirls, Native: "dd1f77c5-dea9-4e2b-97ae-224af09caf99"},
		tag{Canonical: domain.GenreShotacon, Native: "ddefd648-5140-4e5f-ba18-4eca4071d19b"},
	),
	Status: source.NewTable("status",
		status{Canonical: domain.StatusOngoing, Native: "ongoing"},
		status{Canonical: domain.StatusCompleted, Native: "completed"},
		status{Canonical: domain.StatusHiatus, Native: "hiatus"},
		status{Canonical: domain.StatusCanceled, Native: "cancelled"},
		status{Canonical: domain.StatusPublished, Native: "published"},
		status{Canonical: domain.StatusUnknown, Native: "unknown"},
	),
	Sorts: source.NewTable("sort",
		sort{Canonical: domain.SortPopularity, Native: "followedCount"},
		sort{Canonical: domain.SortLatest, Native: "latestUploadedChapter"},
		sort{Canonical: domain.SortRelevance, Native: "relevance"},
		sort{Canonical: domain.SortAlphabetic, Native: "title"},
	),
	Orders: source.NewTable("order",
		order{Canonical: domain.OrderAsc, Native: "asc"},
		order{Canonical: domain.OrderDesc, Native: "desc"},
	),
}
