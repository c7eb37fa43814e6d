package suwayomi

const sourcesQuery = `
query Sources {
  sources {
    nodes {
      id
      name
      lang
      iconUrl
      supportsLatest
      isNsfw
    }
  }
}`

const fetchSourceMangaMutation = `
mutation FetchSourceManga($input: FetchSourceMangaInput!) {
  fetchSourceManga(input: $input) {
    mangas {
      id
      title
      url
      realUrl
      thumbnailUrl
      author
      artist
      description
      status
      genre
    }
    hasNextPage
  }
}`

const fetchMangaMutation = `
mutation FetchManga($id: Int!) {
  fetchManga(input: { id: $id }) {
    manga {
      id
      title
      url
      realUrl
      thumbnailUrl
      author
      artist
      description
      status
      genre
    }
  }
}`

const fetchChaptersMutation = `
mutation FetchChapters($mangaId: Int!) {
  fetchChapters(input: { mangaId: $mangaId }) {
    chapters {
      id
      name
      chapterNumber
      scanlator
      uploadDate
      url
      realUrl
    }
  }
}`

const fetchChapterPagesMutation = `
mutation FetchChapterPages($chapterId: Int!) {
  fetchChapterPages(input: { chapterId: $chapterId }) {
    pages
  }
}`

const mangaByURLQuery = `
query MangaByUrl($sourceId: LongString!, $url: String!) {
  mangas(filter: { sourceId: { equalTo: $sourceId }, url: { equalTo: $url } }) {
    nodes {
      id
      title
      url
    }
  }
}`
