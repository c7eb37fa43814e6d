package mangadex

import "github.com/DokushoHQ/backends/internal/source"

const schemaDefs = `"$defs": {
	"localized": {
		"oneOf": [
			{"type": "object", "additionalProperties": {"type": "string"}},
			{"type": "array", "maxItems": 0}
		]
	},
	"relationship": {
		"type": "object",
		"required": ["id", "type"],
		"properties": {
			"id": {"type": "string"},
			"type": {"type": "string"},
			"attributes": {"type": ["object", "null"]}
		}
	},
	"tag": {
		"type": "object",
		"required": ["id", "attributes"],
		"properties": {
			"id": {"type": "string"},
			"attributes": {
				"type": "object",
				"required": ["group"],
				"properties": {"group": {"type": "string"}}
			}
		}
	},
	"manga": {
		"type": "object",
		"required": ["id", "type", "attributes"],
		"properties": {
			"id": {"type": "string"},
			"type": {"const": "manga"},
			"attributes": {
				"type": "object",
				"required": ["title", "altTitles", "description", "originalLanguage", "status", "tags"],
				"properties": {
					"title": {"$ref": "#/$defs/localized"},
					"altTitles": {"type": "array", "items": {"$ref": "#/$defs/localized"}},
					"description": {"$ref": "#/$defs/localized"},
					"originalLanguage": {"type": "string"},
					"status": {"type": "string"},
					"state": {"type": ["string", "null"]},
					"tags": {"type": "array", "items": {"$ref": "#/$defs/tag"}}
				}
			},
			"relationships": {"type": ["array", "null"], "items": {"$ref": "#/$defs/relationship"}}
		}
	},
	"chapter": {
		"type": "object",
		"required": ["id", "attributes", "relationships"],
		"properties": {
			"id": {"type": "string"},
			"attributes": {
				"type": "object",
				"required": ["translatedLanguage", "publishAt", "pages"],
				"properties": {
					"volume": {"type": ["string", "null"]},
					"chapter": {"type": ["string", "null"]},
					"title": {"type": ["string", "null"]},
					"translatedLanguage": {"type": "string"},
					"externalUrl": {"type": ["string", "null"]},
					"publishAt": {"type": "string"},
					"pages": {"type": "integer"}
				}
			},
			"relationships": {"type": "array", "items": {"$ref": "#/$defs/relationship"}}
		}
	}
}`

const collectionProps = `"result": {"const": "ok"},
	"limit": {"type": "integer"},
	"offset": {"type": "integer"},
	"total": {"type": "integer"},`

var (
	mangaSchema = source.MustCompileSchema("mangadex-manga.json", `{
	"type": "object",
	"required": ["result", "data"],
	"properties": {
		"result": {"const": "ok"},
		"data": {"$ref": "#/$defs/manga"}
	},
	`+schemaDefs+`}`)

	mangaListSchema = source.MustCompileSchema("mangadex-manga-list.json", `{
	"type": "object",
	"required": ["result", "data", "limit", "offset", "total"],
	"properties": {
	`+collectionProps+`
		"data": {"type": "array", "items": {"$ref": "#/$defs/manga"}}
	},
	`+schemaDefs+`}`)

	chapterListSchema = source.MustCompileSchema("mangadex-chapter-list.json", `{
	"type": "object",
	"required": ["result", "data", "limit", "offset", "total"],
	"properties": {
	`+collectionProps+`
		"data": {"type": "array", "items": {"$ref": "#/$defs/chapter"}}
	},
	`+schemaDefs+`}`)

	latestSchema = source.MustCompileSchema("mangadex-latest.json", `{
	"type": "object",
	"required": ["result", "data", "limit", "offset", "total"],
	"properties": {
	`+collectionProps+`
		"data": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "relationships"],
				"properties": {
					"id": {"type": "string"},
					"relationships": {"type": "array", "items": {"$ref": "#/$defs/relationship"}}
				}
			}
		}
	},
	`+schemaDefs+`}`)

	atHomeSchema = source.MustCompileSchema("mangadex-at-home.json", `{
	"type": "object",
	"required": ["result", "baseUrl", "chapter"],
	"properties": {
		"result": {"const": "ok"},
		"baseUrl": {"type": "string", "minLength": 1},
		"chapter": {
			"type": "object",
			"required": ["hash", "data"],
			"properties": {
				"hash": {"type": "string"},
				"data": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`)
)
