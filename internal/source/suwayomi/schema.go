package suwayomi

import "github.com/DokushoHQ/backends/internal/source"

const mangaDef = `"$defs": {
	"manga": {
		"type": "object",
		"required": ["id", "title", "url", "status"],
		"properties": {
			"id": {"type": "integer"},
			"title": {"type": "string"},
			"url": {"type": "string"},
			"realUrl": {"type": ["string", "null"]},
			"thumbnailUrl": {"type": ["string", "null"]},
			"author": {"type": ["string", "null"]},
			"artist": {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"status": {"type": "string"},
			"genre": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}
}`

var (
	sourcesSchema = source.MustCompileSchema("suwayomi-sources.json", `{
	"type": "object",
	"required": ["sources"],
	"properties": {
		"sources": {
			"type": "object",
			"required": ["nodes"],
			"properties": {
				"nodes": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["id", "name", "lang"],
						"properties": {
							"id": {"type": "string"},
							"name": {"type": "string"},
							"lang": {"type": "string"},
							"iconUrl": {"type": "string"},
							"supportsLatest": {"type": "boolean"},
							"isNsfw": {"type": "boolean"}
						}
					}
				}
			}
		}
	}
}`)

	sourceMangaSchema = source.MustCompileSchema("suwayomi-source-manga.json", `{
	"type": "object",
	"required": ["fetchSourceManga"],
	"properties": {
		"fetchSourceManga": {
			"type": "object",
			"required": ["mangas", "hasNextPage"],
			"properties": {
				"mangas": {"type": "array", "items": {"$ref": "#/$defs/manga"}},
				"hasNextPage": {"type": "boolean"}
			}
		}
	},
	`+mangaDef+`}`)

	mangaSchema = source.MustCompileSchema("suwayomi-manga.json", `{
	"type": "object",
	"required": ["fetchManga"],
	"properties": {
		"fetchManga": {
			"type": "object",
			"required": ["manga"],
			"properties": {"manga": {"$ref": "#/$defs/manga"}}
		}
	},
	`+mangaDef+`}`)

	chaptersSchema = source.MustCompileSchema("suwayomi-chapters.json", `{
	"type": "object",
	"required": ["fetchChapters"],
	"properties": {
		"fetchChapters": {
			"type": "object",
			"required": ["chapters"],
			"properties": {
				"chapters": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["id", "name", "chapterNumber", "uploadDate", "url"],
						"properties": {
							"id": {"type": "integer"},
							"name": {"type": "string"},
							"chapterNumber": {"type": "number"},
							"scanlator": {"type": ["string", "null"]},
							"uploadDate": {"type": ["string", "number"]},
							"url": {"type": "string"},
							"realUrl": {"type": ["string", "null"]}
						}
					}
				}
			}
		}
	}
}`)

	pagesSchema = source.MustCompileSchema("suwayomi-pages.json", `{
	"type": "object",
	"required": ["fetchChapterPages"],
	"properties": {
		"fetchChapterPages": {
			"type": "object",
			"required": ["pages"],
			"properties": {"pages": {"type": "array", "items": {"type": "string"}}}
		}
	}
}`)

	mangaByURLSchema = source.MustCompileSchema("suwayomi-manga-by-url.json", `{
	"type": "object",
	"required": ["mangas"],
	"properties": {
		"mangas": {
			"type": "object",
			"required": ["nodes"],
			"properties": {
				"nodes": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["id", "url"],
						"properties": {
							"id": {"type": "integer"},
							"title": {"type": "string"},
							"url": {"type": "string"}
						}
					}
				}
			}
		}
	}
}`)
)
