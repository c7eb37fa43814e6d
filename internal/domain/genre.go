package domain

// Genre is a canonical genre label. Values are the display names.
type Genre string

// Canonical genres.
const (
	GenreUnknown              Genre = "Unknown"
	GenreOther                Genre = "Other"
	GenreFourKoma             Genre = "Four Koma"
	GenreAction               Genre = "Action"
	GenreAdaptation           Genre = "Adaptation"
	GenreAdult                Genre = "Adult"
	GenreAdventure            Genre = "Adventure"
	GenreAliens               Genre = "Aliens"
	GenreAnimals              Genre = "Animals"
	GenreAnthology            Genre = "Anthology"
	GenreAwardWinning         Genre = "Award Winning"
	GenreBoysLove             Genre = "Boys Love"
	GenreComedy               Genre = "Comedy"
	GenreCooking              Genre = "Cooking"
	GenreCrime                Genre = "Crime"
	GenreCrossdressing        Genre = "Cross-dressing"
	GenreDelinquents          Genre = "Delinquents"
	GenreDemons               Genre = "Demons"
	GenreDoujinshi            Genre = "Doujinshi"
	GenreDrama                Genre = "Drama"
	GenreEcchi                Genre = "Ecchi"
	GenreFanColored           Genre = "Fan Colored"
	GenreFantasy              Genre = "Fantasy"
	GenreFullColor            Genre = "Full Color"
	GenreGenderBender         Genre = "Gender Bender"
	GenreGenderSwap           Genre = "Gender Swap"
	GenreGhost                Genre = "Ghost"
	GenreGirlsLove            Genre = "Girls Love"
	GenreGore                 Genre = "Gore"
	GenreGyaru                Genre = "Gyaru"
	GenreHarem                Genre = "Harem"
	GenreHentai               Genre = "Hentai"
	GenreHistorical           Genre = "Historical"
	GenreHorror               Genre = "Horror"
	GenreIncest               Genre = "Incest"
	GenreIsekai               Genre = "Isekai"
	GenreJosei                Genre = "Josei"
	GenreKids                 Genre = "Kids"
	GenreLolicon              Genre = "Lolicon"
	GenreLongStrip            Genre = "Long Strip"
	GenreMafia                Genre = "Mafia"
	GenreMagic                Genre = "Magic"
	GenreMagicalGirls         Genre = "Magical Girls"
	GenreMartialArts          Genre = "Martial Arts"
	GenreMature               Genre = "Mature"
	GenreMecha                Genre = "Mecha"
	GenreMedical              Genre = "Medical"
	GenreMilitary             Genre = "Military"
	GenreMonsterGirls         Genre = "Monster Girls"
	GenreMonsters             Genre = "Monsters"
	GenreMusic                Genre = "Music"
	GenreMystery              Genre = "Mystery"
	GenreNinja                Genre = "Ninja"
	GenreOfficeWorkers        Genre = "Office Workers"
	GenreOfficialColored      Genre = "Official Colored"
	GenreOneShot              Genre = "OneShot"
	GenrePhilosophical        Genre = "Philosophical"
	GenrePolice               Genre = "Police"
	GenrePostApocalyptic      Genre = "Post Apocalyptic"
	GenrePsychological        Genre = "Psychological"
	GenrePsychologicalRomance Genre = "Psychological Romance"
	GenreReincarnation        Genre = "Reincarnation"
	GenreReverseHarem         Genre = "Reverse Harem"
	GenreRomance              Genre = "Romance"
	GenreSamurai              Genre = "Samurai"
	GenreSchoolLife           Genre = "School Life"
	GenreSciFi                Genre = "Sci-fi"
	GenreSeinen               Genre = "Seinen"
	GenreSelfPublished        Genre = "Self Published"
	GenreSexualViolence       Genre = "Sexual Violence"
	GenreShotacon             Genre = "Shotacon"
	GenreShoujo               Genre = "Shoujo"
	GenreShoujoAi             Genre = "Shoujo Ai"
	GenreShounen              Genre = "Shounen"
	GenreShounenAi            Genre = "Shounen Ai"
	GenreSliceOfLife          Genre = "Slice of Life"
	GenreSmut                 Genre = "Smut"
	GenreSpace                Genre = "Space"
	GenreSports               Genre = "Sports"
	GenreSuperhero            Genre = "Superhero"
	GenreSupernatural         Genre = "Supernatural"
	GenreSurvival             Genre = "Survival"
	GenreSuspense             Genre = "Suspense"
	GenreThriller             Genre = "Thriller"
	GenreTimeTravel           Genre = "Time Travel"
	GenreToomics              Genre = "Toomics"
	GenreTraditionalGames     Genre = "Traditional Games"
	GenreTragedy              Genre = "Tragedy"
	GenreVampires             Genre = "Vampires"
	GenreVideoGames           Genre = "Video Games"
	GenreVillainess           Genre = "Villainess"
	GenreVirtualReality       Genre = "Virtual Reality"
	GenreWebComic             Genre = "WebComic"
	GenreWuxia                Genre = "Wuxia"
	GenreYaoi                 Genre = "Yaoi"
	GenreYuri                 Genre = "Yuri"
	GenreZombies              Genre = "Zombies"
)

// UniqueGenres returns genres with duplicates removed, keeping first-seen order.
func UniqueGenres(genres []Genre) []Genre {
	seen := make(map[Genre]struct{}, len(genres))
	out := make([]Genre, 0, len(genres))
	for _, g := range genres {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
