package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
)

// seriesColumns must match the scan order in scanSeries.
const seriesColumns = `id, title, synopsis, cover, custom_cover, status, type, locked_fields,
	soft_deleted_at, pending_delete_job_id, refreshed_at, created_at, updated_at`

func scanSeries(scanner interface{ Scan(dest ...any) error }) (*domain.Series, error) {
	var (
		s                            domain.Series
		synopsis, cover, customCover sql.NullString
		status, locked               string
		softDeletedAt, pendingJob    sql.NullString
		refreshedAt                  sql.NullString
		createdAt, updatedAt         string
	)
	err := scanner.Scan(
		&s.ID, &s.Title, &synopsis, &cover, &customCover, &status, &s.Type, &locked,
		&softDeletedAt, &pendingJob, &refreshedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Synopsis = stringPtr(synopsis)
	s.Cover = stringPtr(cover)
	s.CustomCover = stringPtr(customCover)
	s.PendingDeleteJobID = stringPtr(pendingJob)

	if err := fromJSON(status, &s.Status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if err := fromJSON(locked, &s.LockedFields); err != nil {
		return nil, fmt.Errorf("decode locked fields: %w", err)
	}
	if s.SoftDeletedAt, err = parseNullableTime(softDeletedAt); err != nil {
		return nil, err
	}
	if s.RefreshedAt, err = parseNullableTime(refreshedAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSeries returns a series, soft-deleted or not. Returns store.ErrNotFound if missing.
func (s *Store) GetSeries(ctx context.Context, id string) (*domain.Series, error) {
	return getSeries(ctx, s.db, id)
}

func getSeries(ctx context.Context, q queryer, id string) (*domain.Series, error) {
	row := q.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	series, err := scanSeries(row)
	if err != nil {
		return nil, mapNoRows(err, "series "+id)
	}
	return series, nil
}

// ListSeries returns live series by title, for the CLI and tests.
func (s *Store) ListSeries(ctx context.Context, limit int) ([]*domain.Series, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE soft_deleted_at IS NULL ORDER BY title ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var out []*domain.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// SeriesIDs returns the id of every live series.
func (s *Store) SeriesIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM series WHERE soft_deleted_at IS NULL ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query series ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var seriesID string
		if err := rows.Scan(&seriesID); err != nil {
			return nil, err
		}
		out = append(out, seriesID)
	}
	return out, rows.Err()
}

// SeriesDisplay is the recomputed display state written by the indexer.
type SeriesDisplay struct {
	Title    string
	Synopsis *string
	Cover    *string
	Status   []domain.SerieStatus
	Type     domain.SerieType
}

// UpdateSeriesDisplay writes the display fields and stamps refreshed_at.
func (s *Store) UpdateSeriesDisplay(ctx context.Context, id string, d SeriesDisplay) error {
	if d.Status == nil {
		d.Status = []domain.SerieStatus{}
	}
	status, err := jsonText(d.Status)
	if err != nil {
		return err
	}
	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE series
		SET title = ?, synopsis = ?, cover = ?, status = ?, type = ?, refreshed_at = ?, updated_at = ?
		WHERE id = ?`,
		d.Title, nullableString(d.Synopsis), nullableString(d.Cover), status, d.Type, now, now, id)
	if err != nil {
		return fmt.Errorf("update display of series %s: %w", id, err)
	}
	return expectRow(res, "series "+id)
}

// SetCustomCover stores a user-provided processed cover. An empty cover
// clears it.
func (s *Store) SetCustomCover(ctx context.Context, id, cover string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE series SET custom_cover = ?, updated_at = ? WHERE id = ?`,
		sql.NullString{String: cover, Valid: cover != ""}, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("set custom cover of series %s: %w", id, err)
	}
	return expectRow(res, "series "+id)
}

// SetLockedFields replaces the set of pinned display fields.
func (s *Store) SetLockedFields(ctx context.Context, id string, fields []domain.LockedField) error {
	if fields == nil {
		fields = []domain.LockedField{}
	}
	text, err := jsonText(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE series SET locked_fields = ?, updated_at = ? WHERE id = ?`,
		text, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("lock fields of series %s: %w", id, err)
	}
	return expectRow(res, "series "+id)
}

// MarkSoftDeleted stamps the soft delete and the pending hard delete job.
func (s *Store) MarkSoftDeleted(ctx context.Context, id string, at time.Time, jobID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE series SET soft_deleted_at = ?, pending_delete_job_id = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(at), jobID, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("soft delete series %s: %w", id, err)
	}
	return expectRow(res, "series "+id)
}

// ClearSoftDeleted restores a soft-deleted series.
func (s *Store) ClearSoftDeleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE series SET soft_deleted_at = NULL, pending_delete_job_id = NULL, updated_at = ?
		WHERE id = ?`,
		formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("restore series %s: %w", id, err)
	}
	return expectRow(res, "series "+id)
}

// DeleteSeries removes the series row. Remaining mirrors, chapters and pages cascade.
func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete series %s: %w", id, err)
	}
	return nil
}
