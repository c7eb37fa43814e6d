package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/store"
)

// chapterColumns must match the scan order in scanChapter.
const chapterColumns = `id, series_id, source_id, external_id, title, chapter_number, volume_number,
	volume_name, language, date_upload, external_url, page_fetch_status,
	source_removed_at, source_removal_acknowledged_at, enabled, created_at, updated_at`

func scanChapter(scanner interface{ Scan(dest ...any) error }) (*domain.Chapter, error) {
	var (
		c                         domain.Chapter
		volume                    sql.NullInt64
		volumeName, externalURL   sql.NullString
		dateUpload                string
		removedAt, acknowledgedAt sql.NullString
		enabled                   int
		createdAt, updatedAt      string
	)
	err := scanner.Scan(
		&c.ID, &c.SeriesID, &c.SourceID, &c.ExternalID, &c.Title, &c.ChapterNumber, &volume,
		&volumeName, &c.Language, &dateUpload, &externalURL, &c.PageFetchStatus,
		&removedAt, &acknowledgedAt, &enabled, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if volume.Valid {
		v := int(volume.Int64)
		c.VolumeNumber = &v
	}
	c.VolumeName = stringPtr(volumeName)
	c.ExternalURL = stringPtr(externalURL)
	c.Enabled = enabled == 1

	if c.DateUpload, err = parseTime(dateUpload); err != nil {
		return nil, err
	}
	if c.SourceRemovedAt, err = parseNullableTime(removedAt); err != nil {
		return nil, err
	}
	if c.SourceRemovalAcknowledgedAt, err = parseNullableTime(acknowledgedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChapter returns a chapter. Returns store.ErrNotFound if missing.
func (s *Store) GetChapter(ctx context.Context, id string) (*domain.Chapter, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id)
	c, err := scanChapter(row)
	if err != nil {
		return nil, mapNoRows(err, "chapter "+id)
	}
	return c, nil
}

// ListChapters returns the chapters of a series by number.
func (s *Store) ListChapters(ctx context.Context, seriesID string) ([]*domain.Chapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chapterColumns+` FROM chapters
		WHERE series_id = ?
		ORDER BY chapter_number ASC, source_id ASC`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var out []*domain.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChapterStatus stores the page fetch status of a chapter.
func (s *Store) SetChapterStatus(ctx context.Context, id string, status domain.FetchStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET page_fetch_status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("set status of chapter %s: %w", id, err)
	}
	return expectRow(res, "chapter "+id)
}

// SetRetriedChapterStatus is SetChapterStatus for page retries: a chapter
// already in Success keeps it. Reports whether the row changed.
func (s *Store) SetRetriedChapterStatus(ctx context.Context, id string, status domain.FetchStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chapters SET page_fetch_status = ?, updated_at = ?
		WHERE id = ? AND page_fetch_status != ?`,
		status, formatTime(s.now()), id, domain.FetchSuccess)
	if err != nil {
		return false, fmt.Errorf("set status of chapter %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DisableChapter hides a chapter that has no pages.
func (s *Store) DisableChapter(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET enabled = 0, updated_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("disable chapter %s: %w", id, err)
	}
	return nil
}

// retryablePageFilter matches pages that failed without being given up on.
const retryablePageFilter = `(p.url IS NULL OR p.url = '') AND p.source_url IS NOT NULL AND p.permanently_failed = 0`

// RetryableChapters returns ids of Partial or Failed chapters that still have
// retryable pages, oldest update first. An empty seriesID searches every series.
// Incomplete chapters are never selected, even with retryable pages left; they
// are refetched only when an import reports the chapter changed.
func (s *Store) RetryableChapters(ctx context.Context, seriesID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM chapters c
		WHERE c.page_fetch_status IN (?, ?)
		  AND (? = '' OR c.series_id = ?)
		  AND EXISTS (SELECT 1 FROM chapter_pages p WHERE p.chapter_id = c.id AND `+retryablePageFilter+`)
		ORDER BY c.updated_at ASC
		LIMIT ?`,
		domain.FetchPartial, domain.FetchFailed, seriesID, seriesID, limit)
	if err != nil {
		return nil, fmt.Errorf("query retryable chapters: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var chapterID string
		if err := rows.Scan(&chapterID); err != nil {
			return nil, err
		}
		out = append(out, chapterID)
	}
	return out, rows.Err()
}

// FailedStats counts incomplete chapters and their retryable pages.
type FailedStats struct {
	PartialChapters int `json:"partialChapters"`
	FailedChapters  int `json:"failedChapters"`
	FailedPages     int `json:"failedPages"`
}

// FailedStats aggregates failures globally, or for one series when seriesID is set.
func (s *Store) FailedStats(ctx context.Context, seriesID string) (FailedStats, error) {
	var st FailedStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN page_fetch_status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN page_fetch_status = ? THEN 1 ELSE 0 END), 0)
		FROM chapters
		WHERE ? = '' OR series_id = ?`,
		domain.FetchPartial, domain.FetchFailed, seriesID, seriesID,
	).Scan(&st.PartialChapters, &st.FailedChapters)
	if err != nil {
		return st, fmt.Errorf("count failed chapters: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chapter_pages p
		JOIN chapters c ON c.id = p.chapter_id
		WHERE `+retryablePageFilter+` AND (? = '' OR c.series_id = ?)`,
		seriesID, seriesID,
	).Scan(&st.FailedPages)
	if err != nil {
		return st, fmt.Errorf("count failed pages: %w", err)
	}
	return st, nil
}

// AcknowledgeRemovals stamps the removal acknowledgement of chapters. Every
// id must belong to the series and be marked as removed from its source,
// otherwise nothing is written and store.ErrInvalidInput is returned.
func (s *Store) AcknowledgeRemovals(ctx context.Context, seriesID string, chapterIDs []string) (int, error) {
	unique := make(map[string]struct{}, len(chapterIDs))
	args := make([]any, 0, len(chapterIDs))
	for _, cid := range chapterIDs {
		if _, dup := unique[cid]; dup {
			continue
		}
		unique[cid] = struct{}{}
		args = append(args, cid)
	}
	if len(args) == 0 {
		return 0, nil
	}

	var updated int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var matching int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM chapters
			WHERE series_id = ? AND source_removed_at IS NOT NULL
			  AND id IN (`+placeholders(len(args))+`)`,
			append([]any{seriesID}, args...)...).Scan(&matching)
		if err != nil {
			return err
		}
		if matching != len(args) {
			return fmt.Errorf("some chapters do not belong to this series or are not removed from source: %w", store.ErrInvalidInput)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE chapters SET source_removal_acknowledged_at = ?
			WHERE id IN (`+placeholders(len(args))+`)`,
			append([]any{formatTime(s.now())}, args...)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		updated = int(n)
		return err
	})
	return updated, err
}

// DeleteChapters removes every chapter of a series; pages cascade.
func (s *Store) DeleteChapters(ctx context.Context, seriesID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("delete chapters of %s: %w", seriesID, err)
	}
	return nil
}
