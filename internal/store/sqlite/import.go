package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/id"
	"github.com/DokushoHQ/backends/internal/store"
)

// SerieImport is one fetched catalog entry with its chapter list.
type SerieImport struct {
	SourceID        string
	ExternalID      string
	Title           domain.MultiLanguage
	Synopsis        domain.MultiLanguage
	AlternateTitles domain.MultiLanguage
	CoverSourceURL  string
	ExternalURL     *string
	Status          []domain.SerieStatus
	Type            domain.SerieType
	Genres          []domain.Genre
	Authors         []string
	Artists         []string
	Chapters        []ChapterImport
	// Policy resolves the display title and synopsis of a newly created series.
	Policy domain.LanguagePolicy
}

// ChapterImport is one chapter as listed by a source.
type ChapterImport struct {
	ExternalID    string
	Title         string
	ChapterNumber float64
	VolumeNumber  *int
	VolumeName    *string
	Language      domain.Language
	DateUpload    time.Time
	ExternalURL   *string
	Groups        []domain.ScanlationGroup
}

// ImportOutcome reports what ImportSerie changed.
type ImportOutcome struct {
	SeriesID      string
	SerieSourceID string
	Created       bool
	// ChangedChapterIDs are chapters that are new or whose upload date moved,
	// in the order they were listed.
	ChangedChapterIDs []string
	NewChapters       int
	Removed           int
}

// ImportSerie upserts a fetched entry in one transaction. An unknown
// (source, external id) pair creates a series with a primary mirror; a
// known one refreshes the mirror. Chapters are upserted by (source, external
// id); previously seen chapters missing from the listing are stamped as
// removed.
func (s *Store) ImportSerie(ctx context.Context, in *SerieImport) (*ImportOutcome, error) {
	var out *ImportOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.importSerie(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("import %s/%s: %w", in.SourceID, in.ExternalID, err)
	}
	return out, nil
}

func (s *Store) importSerie(ctx context.Context, tx *sql.Tx, in *SerieImport) (*ImportOutcome, error) {
	now := s.now()
	stamp := formatTime(now)
	out := &ImportOutcome{}

	existing, err := findSerieSource(ctx, tx, in.SourceID, in.ExternalID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	title, err := jsonText(orEmpty(in.Title))
	if err != nil {
		return nil, err
	}
	synopsis, err := jsonText(orEmpty(in.Synopsis))
	if err != nil {
		return nil, err
	}
	alternates, err := jsonText(orEmpty(in.AlternateTitles))
	if err != nil {
		return nil, err
	}
	statuses := in.Status
	if statuses == nil {
		statuses = []domain.SerieStatus{}
	}
	status, err := jsonText(statuses)
	if err != nil {
		return nil, err
	}
	serieType := in.Type
	if serieType == "" {
		serieType = domain.TypeUnknown
	}

	if existing != nil {
		out.SeriesID = existing.SeriesID
		out.SerieSourceID = existing.ID
		_, err = tx.ExecContext(ctx, `
			UPDATE series_sources
			SET title = ?, synopsis = ?, alternate_titles = ?, cover_source_url = ?,
			    external_url = ?, status = ?, type = ?, updated_at = ?
			WHERE id = ?`,
			title, synopsis, alternates, in.CoverSourceURL,
			nullableString(in.ExternalURL), status, serieType, stamp, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("update serie source: %w", err)
		}
	} else {
		out.Created = true
		out.SeriesID = id.Row()
		out.SerieSourceID = id.Row()

		var displaySynopsis *string
		if v := in.Synopsis.Resolve(in.Policy, ""); v != "" {
			displaySynopsis = &v
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO series (id, title, synopsis, status, type, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			out.SeriesID, in.Title.Resolve(in.Policy, domain.DefaultTitle),
			nullableString(displaySynopsis), status, serieType, stamp, stamp)
		if err != nil {
			return nil, fmt.Errorf("insert series: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO series_sources (
				id, series_id, source_id, external_id, title, synopsis, alternate_titles,
				cover_source_url, external_url, status, type, is_primary, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			out.SerieSourceID, out.SeriesID, in.SourceID, in.ExternalID, title, synopsis, alternates,
			in.CoverSourceURL, nullableString(in.ExternalURL), status, serieType, stamp, stamp)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("serie source %s/%s: %w", in.SourceID, in.ExternalID, store.ErrAlreadyExists)
			}
			return nil, fmt.Errorf("insert serie source: %w", err)
		}
	}

	if err := linkCredits(ctx, tx, out.SerieSourceID, in); err != nil {
		return nil, err
	}

	groupIDs, err := upsertGroups(ctx, tx, in.SourceID, in.Chapters)
	if err != nil {
		return nil, err
	}

	known, err := knownChapters(ctx, tx, out.SeriesID, in.SourceID)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]struct{}, len(in.Chapters))
	for i := range in.Chapters {
		c := &in.Chapters[i]
		listed[c.ExternalID] = struct{}{}

		chapterID, changed, err := upsertChapter(ctx, tx, out.SeriesID, in.SourceID, c, known[c.ExternalID], stamp)
		if err != nil {
			return nil, err
		}
		if _, seen := known[c.ExternalID]; !seen {
			out.NewChapters++
		}
		if changed {
			out.ChangedChapterIDs = append(out.ChangedChapterIDs, chapterID)
		}
		if err := linkGroups(ctx, tx, chapterID, in.SourceID, c.Groups, groupIDs); err != nil {
			return nil, err
		}
	}

	var removed []any
	for externalID, k := range known {
		if _, ok := listed[externalID]; !ok && !k.removed {
			removed = append(removed, externalID)
		}
	}
	if len(removed) > 0 {
		args := append([]any{stamp, stamp, out.SeriesID, in.SourceID}, removed...)
		res, err := tx.ExecContext(ctx, `
			UPDATE chapters
			SET source_removed_at = ?, source_removal_acknowledged_at = NULL, updated_at = ?
			WHERE series_id = ? AND source_id = ? AND source_removed_at IS NULL
			  AND external_id IN (`+placeholders(len(removed))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("mark removed chapters: %w", err)
		}
		n, _ := res.RowsAffected()
		out.Removed = int(n)
	}

	if out.NewChapters > 0 && !out.Created {
		if _, err := tx.ExecContext(ctx, `UPDATE series SET updated_at = ? WHERE id = ?`, stamp, out.SeriesID); err != nil {
			return nil, fmt.Errorf("touch series: %w", err)
		}
	}
	return out, nil
}

type knownChapter struct {
	id         string
	dateUpload string
	removed    bool
}

func knownChapters(ctx context.Context, tx *sql.Tx, seriesID, sourceID string) (map[string]*knownChapter, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, external_id, date_upload, source_removed_at IS NOT NULL
		FROM chapters WHERE series_id = ? AND source_id = ?`, seriesID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query known chapters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*knownChapter)
	for rows.Next() {
		var (
			k          knownChapter
			externalID string
		)
		if err := rows.Scan(&k.id, &externalID, &k.dateUpload, &k.removed); err != nil {
			return nil, err
		}
		out[externalID] = &k
	}
	return out, rows.Err()
}

// upsertChapter writes one listed chapter and reports whether it needs its
// pages fetched. Optional volume and url fields never overwrite with null.
func upsertChapter(ctx context.Context, tx *sql.Tx, seriesID, sourceID string, c *ChapterImport, prev *knownChapter, stamp string) (string, bool, error) {
	dateUpload := formatTime(c.DateUpload)
	volume := sql.NullInt64{}
	if c.VolumeNumber != nil {
		volume = sql.NullInt64{Int64: int64(*c.VolumeNumber), Valid: true}
	}

	if prev == nil {
		chapterID := id.Row()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chapters (
				id, series_id, source_id, external_id, title, chapter_number, volume_number,
				volume_name, language, date_upload, external_url, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chapterID, seriesID, sourceID, c.ExternalID, c.Title, c.ChapterNumber, volume,
			nullableString(c.VolumeName), c.Language, dateUpload, nullableString(c.ExternalURL), stamp, stamp)
		if err != nil {
			return "", false, fmt.Errorf("insert chapter %s: %w", c.ExternalID, err)
		}
		return chapterID, true, nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE chapters
		SET title = ?, chapter_number = ?, date_upload = ?,
		    volume_number = COALESCE(?, volume_number),
		    volume_name = COALESCE(?, volume_name),
		    external_url = COALESCE(?, external_url),
		    source_removed_at = NULL, source_removal_acknowledged_at = NULL, updated_at = ?
		WHERE id = ?`,
		c.Title, c.ChapterNumber, dateUpload, volume, nullableString(c.VolumeName),
		nullableString(c.ExternalURL), stamp, prev.id)
	if err != nil {
		return "", false, fmt.Errorf("update chapter %s: %w", c.ExternalID, err)
	}
	return prev.id, !sameInstant(prev.dateUpload, c.DateUpload), nil
}

func sameInstant(stored string, t time.Time) bool {
	parsed, err := parseTime(stored)
	if err != nil {
		return false
	}
	return parsed.Equal(t)
}

// upsertGroups registers every group credited in the listing and returns
// their row ids keyed by external id.
func upsertGroups(ctx context.Context, tx *sql.Tx, sourceID string, chapters []ChapterImport) (map[string]string, error) {
	out := make(map[string]string)
	for _, c := range chapters {
		for _, g := range c.Groups {
			if _, done := out[g.ExternalID]; done || g.ExternalID == "" {
				continue
			}
			var groupID string
			err := tx.QueryRowContext(ctx, `
				INSERT INTO scanlation_groups (id, source_id, external_id, name, url)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(source_id, external_id) DO UPDATE SET name = excluded.name, url = excluded.url
				RETURNING id`,
				id.Row(), sourceID, g.ExternalID, g.Name, nullableString(g.URL)).Scan(&groupID)
			if err != nil {
				return nil, fmt.Errorf("upsert group %s: %w", g.ExternalID, err)
			}
			out[g.ExternalID] = groupID
		}
	}
	return out, nil
}

func linkGroups(ctx context.Context, tx *sql.Tx, chapterID, sourceID string, groups []domain.ScanlationGroup, ids map[string]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_groups WHERE chapter_id = ?`, chapterID); err != nil {
		return fmt.Errorf("clear chapter groups: %w", err)
	}
	for _, g := range groups {
		groupID, ok := ids[g.ExternalID]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chapter_groups (chapter_id, group_id) VALUES (?, ?)`,
			chapterID, groupID); err != nil {
			return fmt.Errorf("link group %s/%s: %w", sourceID, g.ExternalID, err)
		}
	}
	return nil
}

// linkCredits replaces the genre, author and artist links of a mirror,
// creating missing vocabulary rows.
func linkCredits(ctx context.Context, tx *sql.Tx, mirrorID string, in *SerieImport) error {
	genres := make([]string, 0, len(in.Genres))
	for _, g := range domain.UniqueGenres(in.Genres) {
		genres = append(genres, string(g))
	}

	sets := []struct {
		table, column, link, linkColumn string
		values                          []string
	}{
		{"genres", "title", "series_source_genres", "genre_id", genres},
		{"authors", "name", "series_source_authors", "author_id", in.Authors},
		{"artists", "name", "series_source_artists", "artist_id", in.Artists},
	}

	for _, set := range sets {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+set.link+` WHERE serie_source_id = ?`, mirrorID); err != nil {
			return fmt.Errorf("clear %s: %w", set.link, err)
		}
		for _, v := range set.values {
			if v == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+set.table+` (`+set.column+`) VALUES (?) ON CONFLICT(`+set.column+`) DO NOTHING`, v); err != nil {
				return fmt.Errorf("insert %s %q: %w", set.table, v, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO `+set.link+` (serie_source_id, `+set.linkColumn+`)
				SELECT ?, id FROM `+set.table+` WHERE `+set.column+` = ?`, mirrorID, v); err != nil {
				return fmt.Errorf("link %s %q: %w", set.table, v, err)
			}
		}
	}
	return nil
}

func orEmpty(m domain.MultiLanguage) domain.MultiLanguage {
	if m == nil {
		return domain.MultiLanguage{}
	}
	return m
}
