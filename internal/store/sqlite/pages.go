package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/id"
)

// pageColumns must match the scan order in scanPage.
const pageColumns = `id, chapter_id, page_index, url, source_url, permanently_failed,
	quality, quality_issues, metadata, created_at`

func scanPage(scanner interface{ Scan(dest ...any) error }) (*domain.ChapterPage, error) {
	var (
		p                 domain.ChapterPage
		url, sourceURL    sql.NullString
		permanent         int
		quality, metadata sql.NullString
		issues, createdAt string
	)
	err := scanner.Scan(
		&p.ID, &p.ChapterID, &p.Index, &url, &sourceURL, &permanent,
		&quality, &issues, &metadata, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.URL = stringPtr(url)
	p.SourceURL = stringPtr(sourceURL)
	p.PermanentlyFailed = permanent == 1
	if quality.Valid {
		q := domain.ImageQuality(quality.String)
		p.Quality = &q
	}
	if err := fromJSON(issues, &p.QualityIssues); err != nil {
		return nil, fmt.Errorf("decode quality issues: %w", err)
	}
	if metadata.Valid {
		p.Metadata = &domain.PageMetadata{}
		if err := fromJSON(metadata.String, p.Metadata); err != nil {
			return nil, fmt.Errorf("decode page metadata: %w", err)
		}
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPages returns the pages of a chapter in reading order.
func (s *Store) ListPages(ctx context.Context, chapterID string) ([]*domain.ChapterPage, error) {
	return s.queryPages(ctx, `SELECT `+pageColumns+` FROM chapter_pages WHERE chapter_id = ? ORDER BY page_index`, chapterID)
}

// RetryablePages returns pages that failed but may be fetched again.
func (s *Store) RetryablePages(ctx context.Context, chapterID string) ([]*domain.ChapterPage, error) {
	return s.queryPages(ctx, `
		SELECT `+pageColumns+` FROM chapter_pages p
		WHERE p.chapter_id = ? AND `+retryablePageFilter+`
		ORDER BY p.page_index`, chapterID)
}

func (s *Store) queryPages(ctx context.Context, query string, args ...any) ([]*domain.ChapterPage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChapterPage
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePages removes every page row of a chapter.
func (s *Store) DeletePages(ctx context.Context, chapterID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chapter_pages WHERE chapter_id = ?`, chapterID); err != nil {
		return fmt.Errorf("delete pages of chapter %s: %w", chapterID, err)
	}
	return nil
}

// InsertPages stores page outcomes in one transaction. Missing ids are generated.
func (s *Store) InsertPages(ctx context.Context, pages []*domain.ChapterPage) error {
	if len(pages) == 0 {
		return nil
	}
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chapter_pages (
				id, chapter_id, page_index, url, source_url, permanently_failed,
				quality, quality_issues, metadata, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare page insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pages {
			if p.ID == "" {
				p.ID = id.Row()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			issues, metadata, err := pageJSON(p)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				p.ID, p.ChapterID, p.Index, nullableString(p.URL), nullableString(p.SourceURL),
				boolToInt(p.PermanentlyFailed), nullableQuality(p.Quality), issues, metadata,
				formatTime(p.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert page %d of chapter %s: %w", p.Index, p.ChapterID, err)
			}
		}
		return nil
	})
}

// MarkPageUploaded records a successful page upload.
func (s *Store) MarkPageUploaded(ctx context.Context, p *domain.ChapterPage) error {
	issues, metadata, err := pageJSON(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE chapter_pages
		SET url = ?, quality = ?, quality_issues = ?, metadata = ?, permanently_failed = 0
		WHERE id = ?`,
		nullableString(p.URL), nullableQuality(p.Quality), issues, metadata, p.ID)
	if err != nil {
		return fmt.Errorf("mark page %s uploaded: %w", p.ID, err)
	}
	return expectRow(res, "page "+p.ID)
}

// MarkPagePermanentlyFailed gives up on a page.
func (s *Store) MarkPagePermanentlyFailed(ctx context.Context, pageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chapter_pages SET permanently_failed = 1 WHERE id = ?`, pageID)
	if err != nil {
		return fmt.Errorf("mark page %s permanently failed: %w", pageID, err)
	}
	return expectRow(res, "page "+pageID)
}

// CountPages tallies the page outcomes of a chapter.
func (s *Store) CountPages(ctx context.Context, chapterID string) (domain.PageCounts, error) {
	var c domain.PageCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN url IS NOT NULL AND url != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN (url IS NULL OR url = '') AND permanently_failed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN (url IS NULL OR url = '') AND permanently_failed = 1 THEN 1 ELSE 0 END), 0)
		FROM chapter_pages WHERE chapter_id = ?`, chapterID,
	).Scan(&c.Success, &c.Retryable, &c.Permanent)
	if err != nil {
		return c, fmt.Errorf("count pages of chapter %s: %w", chapterID, err)
	}
	return c, nil
}

func pageJSON(p *domain.ChapterPage) (string, sql.NullString, error) {
	issues := p.QualityIssues
	if issues == nil {
		issues = []string{}
	}
	issuesText, err := jsonText(issues)
	if err != nil {
		return "", sql.NullString{}, err
	}
	if p.Metadata == nil {
		return issuesText, sql.NullString{}, nil
	}
	metadata, err := jsonText(p.Metadata)
	if err != nil {
		return "", sql.NullString{}, err
	}
	return issuesText, sql.NullString{String: metadata, Valid: true}, nil
}

func nullableQuality(q *domain.ImageQuality) sql.NullString {
	if q == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*q), Valid: true}
}
