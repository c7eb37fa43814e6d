package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DokushoHQ/backends/internal/domain"
)

// serieSourceColumns must match the scan order in scanSerieSource.
const serieSourceColumns = `id, series_id, source_id, external_id, title, synopsis, alternate_titles,
	cover_source_url, cover, external_url, status, type, is_primary,
	consecutive_failures, last_checked_at, created_at, updated_at`

func scanSerieSource(scanner interface{ Scan(dest ...any) error }) (*domain.SerieSource, error) {
	var (
		ss                          domain.SerieSource
		title, synopsis, alternates string
		cover, externalURL          sql.NullString
		status                      string
		isPrimary                   int
		lastChecked                 sql.NullString
		createdAt, updatedAt        string
	)
	err := scanner.Scan(
		&ss.ID, &ss.SeriesID, &ss.SourceID, &ss.ExternalID, &title, &synopsis, &alternates,
		&ss.CoverSourceURL, &cover, &externalURL, &status, &ss.Type, &isPrimary,
		&ss.ConsecutiveFailures, &lastChecked, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ss.Cover = stringPtr(cover)
	ss.ExternalURL = stringPtr(externalURL)
	ss.IsPrimary = isPrimary == 1

	ss.Title = domain.MultiLanguage{}
	ss.Synopsis = domain.MultiLanguage{}
	ss.AlternateTitles = domain.MultiLanguage{}
	if err := fromJSON(title, &ss.Title); err != nil {
		return nil, fmt.Errorf("decode title: %w", err)
	}
	if err := fromJSON(synopsis, &ss.Synopsis); err != nil {
		return nil, fmt.Errorf("decode synopsis: %w", err)
	}
	if err := fromJSON(alternates, &ss.AlternateTitles); err != nil {
		return nil, fmt.Errorf("decode alternate titles: %w", err)
	}
	if err := fromJSON(status, &ss.Status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if ss.LastCheckedAt, err = parseNullableTime(lastChecked); err != nil {
		return nil, err
	}
	if ss.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ss.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ss, nil
}

// GetSerieSource returns a mirror with its credits. Returns store.ErrNotFound if missing.
func (s *Store) GetSerieSource(ctx context.Context, id string) (*domain.SerieSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serieSourceColumns+` FROM series_sources WHERE id = ?`, id)
	ss, err := scanSerieSource(row)
	if err != nil {
		return nil, mapNoRows(err, "serie source "+id)
	}
	if err := s.loadCredits(ctx, []*domain.SerieSource{ss}); err != nil {
		return nil, err
	}
	return ss, nil
}

// FindSerieSource looks a mirror up by its catalog coordinates.
// Returns store.ErrNotFound if the entry was never imported.
func (s *Store) FindSerieSource(ctx context.Context, sourceID, externalID string) (*domain.SerieSource, error) {
	return findSerieSource(ctx, s.db, sourceID, externalID)
}

func findSerieSource(ctx context.Context, q queryer, sourceID, externalID string) (*domain.SerieSource, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+serieSourceColumns+` FROM series_sources WHERE source_id = ? AND external_id = ?`,
		sourceID, externalID)
	ss, err := scanSerieSource(row)
	if err != nil {
		return nil, mapNoRows(err, fmt.Sprintf("serie source %s/%s", sourceID, externalID))
	}
	return ss, nil
}

// ListSerieSources returns the mirrors of a series with credits, primary first.
func (s *Store) ListSerieSources(ctx context.Context, seriesID string) ([]*domain.SerieSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+serieSourceColumns+` FROM series_sources
		WHERE series_id = ?
		ORDER BY is_primary DESC, created_at ASC`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query serie sources: %w", err)
	}
	defer rows.Close()

	var out []*domain.SerieSource
	for rows.Next() {
		ss, err := scanSerieSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan serie source: %w", err)
		}
		out = append(out, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadCredits(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadCredits fills genres, authors and artists of the given mirrors.
func (s *Store) loadCredits(ctx context.Context, mirrors []*domain.SerieSource) error {
	if len(mirrors) == 0 {
		return nil
	}
	byID := make(map[string]*domain.SerieSource, len(mirrors))
	args := make([]any, len(mirrors))
	for i, m := range mirrors {
		byID[m.ID] = m
		args[i] = m.ID
		m.Genres = []domain.Genre{}
		m.Authors = []string{}
		m.Artists = []string{}
	}
	in := placeholders(len(args))

	credits := []struct {
		query  string
		assign func(m *domain.SerieSource, v string)
	}{
		{
			`SELECT l.serie_source_id, g.title FROM series_source_genres l
			 JOIN genres g ON g.id = l.genre_id WHERE l.serie_source_id IN (` + in + `) ORDER BY g.title`,
			func(m *domain.SerieSource, v string) { m.Genres = append(m.Genres, domain.Genre(v)) },
		},
		{
			`SELECT l.serie_source_id, a.name FROM series_source_authors l
			 JOIN authors a ON a.id = l.author_id WHERE l.serie_source_id IN (` + in + `) ORDER BY a.name`,
			func(m *domain.SerieSource, v string) { m.Authors = append(m.Authors, v) },
		},
		{
			`SELECT l.serie_source_id, a.name FROM series_source_artists l
			 JOIN artists a ON a.id = l.artist_id WHERE l.serie_source_id IN (` + in + `) ORDER BY a.name`,
			func(m *domain.SerieSource, v string) { m.Artists = append(m.Artists, v) },
		},
	}

	for _, c := range credits {
		if err := func() error {
			rows, err := s.db.QueryContext(ctx, c.query, args...)
			if err != nil {
				return fmt.Errorf("query credits: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				var mirrorID, value string
				if err := rows.Scan(&mirrorID, &value); err != nil {
					return err
				}
				if m, ok := byID[mirrorID]; ok {
					c.assign(m, value)
				}
			}
			return rows.Err()
		}(); err != nil {
			return err
		}
	}
	return nil
}

// TrackedEntries returns the scheduling view of every mirror of a source.
func (s *Store) TrackedEntries(ctx context.Context, sourceID string) ([]domain.TrackedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ss.id, ss.external_id, ss.consecutive_failures, ss.last_checked_at
		FROM series_sources ss
		JOIN series se ON se.id = ss.series_id
		WHERE ss.source_id = ? AND se.soft_deleted_at IS NULL
		ORDER BY ss.created_at ASC`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("query tracked entries: %w", err)
	}
	defer rows.Close()

	var out []domain.TrackedEntry
	for rows.Next() {
		var (
			e           domain.TrackedEntry
			lastChecked sql.NullString
		)
		if err := rows.Scan(&e.SerieSourceID, &e.ExternalID, &e.ConsecutiveFailures, &lastChecked); err != nil {
			return nil, err
		}
		if e.LastCheckedAt, err = parseNullableTime(lastChecked); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordCheckSuccess resets the failure counter and stamps last_checked_at.
func (s *Store) RecordCheckSuccess(ctx context.Context, sourceID, externalID string) error {
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		UPDATE series_sources SET consecutive_failures = 0, last_checked_at = ?, updated_at = ?
		WHERE source_id = ? AND external_id = ?`,
		now, now, sourceID, externalID)
	if err != nil {
		return fmt.Errorf("record check success: %w", err)
	}
	return nil
}

// RecordCheckFailure increments the failure counter of an existing mirror
// and stamps last_checked_at, which the refresh backoff counts from.
// Missing mirrors are left alone.
func (s *Store) RecordCheckFailure(ctx context.Context, sourceID, externalID string) error {
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		UPDATE series_sources
		SET consecutive_failures = consecutive_failures + 1, last_checked_at = ?, updated_at = ?
		WHERE source_id = ? AND external_id = ?`,
		now, now, sourceID, externalID)
	if err != nil {
		return fmt.Errorf("record check failure: %w", err)
	}
	return nil
}

// SetSerieSourceCover stores the processed cover of a mirror.
func (s *Store) SetSerieSourceCover(ctx context.Context, id, cover string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE series_sources SET cover = ?, updated_at = ? WHERE id = ?`,
		cover, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("set cover of serie source %s: %w", id, err)
	}
	return expectRow(res, "serie source "+id)
}

// DeleteSerieSources removes every mirror of a series.
func (s *Store) DeleteSerieSources(ctx context.Context, seriesID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM series_sources WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("delete serie sources of %s: %w", seriesID, err)
	}
	return nil
}
