package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DokushoHQ/backends/internal/domain"
)

// sourceColumns must match the scan order in scanSource.
const sourceColumns = `id, name, url, icon, version, nsfw, enabled, languages, search_filters,
	timeout_ms, can_block_scraping, minimum_update_interval_ms,
	rate_limit_max, rate_limit_duration_ms, last_fetch_fingerprint, created_at, updated_at`

func scanSource(scanner interface{ Scan(dest ...any) error }) (*domain.Source, error) {
	var (
		src                      domain.Source
		nsfw, enabled, canBlock  int
		languages, filters, fp   string
		timeoutMs, minIntervalMs int64
		rateDurationMs           int64
		createdAt, updatedAt     string
	)
	err := scanner.Scan(
		&src.ID, &src.Name, &src.URL, &src.Icon, &src.Version, &nsfw, &enabled,
		&languages, &filters, &timeoutMs, &canBlock, &minIntervalMs,
		&src.RateLimitMax, &rateDurationMs, &fp, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.NSFW = nsfw == 1
	src.Enabled = enabled == 1
	src.CanBlockScraping = canBlock == 1
	src.Timeout = time.Duration(timeoutMs) * time.Millisecond
	src.MinimumUpdateInterval = time.Duration(minIntervalMs) * time.Millisecond
	src.RateLimitDuration = time.Duration(rateDurationMs) * time.Millisecond

	if err := fromJSON(languages, &src.Languages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}
	if err := fromJSON(filters, &src.SearchFilters); err != nil {
		return nil, fmt.Errorf("decode search filters: %w", err)
	}
	if err := fromJSON(fp, &src.LastFetchFingerprint); err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}
	if src.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if src.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &src, nil
}

// UpsertSource inserts or refreshes a registry row. The stored fingerprint
// and creation time are preserved on update.
func (s *Store) UpsertSource(ctx context.Context, src *domain.Source) error {
	languages, err := jsonText(src.Languages)
	if err != nil {
		return err
	}
	filters, err := jsonText(src.SearchFilters)
	if err != nil {
		return err
	}
	now := formatTime(s.now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (
			id, name, url, icon, version, nsfw, enabled, languages, search_filters,
			timeout_ms, can_block_scraping, minimum_update_interval_ms,
			rate_limit_max, rate_limit_duration_ms, last_fetch_fingerprint, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			icon = excluded.icon,
			version = excluded.version,
			nsfw = excluded.nsfw,
			enabled = excluded.enabled,
			languages = excluded.languages,
			search_filters = excluded.search_filters,
			timeout_ms = excluded.timeout_ms,
			can_block_scraping = excluded.can_block_scraping,
			minimum_update_interval_ms = excluded.minimum_update_interval_ms,
			rate_limit_max = excluded.rate_limit_max,
			rate_limit_duration_ms = excluded.rate_limit_duration_ms,
			updated_at = excluded.updated_at`,
		src.ID, src.Name, src.URL, src.Icon, src.Version,
		boolToInt(src.NSFW), boolToInt(src.Enabled), languages, filters,
		src.Timeout.Milliseconds(), boolToInt(src.CanBlockScraping), src.MinimumUpdateInterval.Milliseconds(),
		src.RateLimitMax, src.RateLimitDuration.Milliseconds(), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.ID, err)
	}
	return nil
}

// GetSource returns a registry row. Returns store.ErrNotFound if missing.
func (s *Store) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if err != nil {
		return nil, mapNoRows(err, "source "+id)
	}
	return src, nil
}

// ListSources returns every registry row, enabled first then by name.
func (s *Store) ListSources(ctx context.Context) ([]*domain.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY enabled DESC, name ASC`)
}

// ListEnabledSources returns enabled registry rows by name.
func (s *Store) ListEnabledSources(ctx context.Context) ([]*domain.Source, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE enabled = 1 ORDER BY name ASC`)
}

// ListTrackedSources returns enabled sources that mirror at least one series,
// optionally restricted to one source id.
func (s *Store) ListTrackedSources(ctx context.Context, onlyID string) ([]*domain.Source, error) {
	return s.querySources(ctx, `
		SELECT `+sourceColumns+` FROM sources
		WHERE enabled = 1
		  AND (? = '' OR id = ?)
		  AND EXISTS (SELECT 1 FROM series_sources ss WHERE ss.source_id = sources.id)
		ORDER BY name ASC`, onlyID, onlyID)
}

func (s *Store) querySources(ctx context.Context, query string, args ...any) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// SetSourceFingerprint stores the leading ids of the latest listing.
func (s *Store) SetSourceFingerprint(ctx context.Context, id string, fingerprint []string) error {
	if fingerprint == nil {
		fingerprint = []string{}
	}
	text, err := jsonText(fingerprint)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET last_fetch_fingerprint = ?, updated_at = ? WHERE id = ?`,
		text, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("set fingerprint of %s: %w", id, err)
	}
	return expectRow(res, "source "+id)
}

// SetSourcesEnabled flips the enabled flag of every registry row: ids in
// disabled are turned off, all others on.
func (s *Store) SetSourcesEnabled(ctx context.Context, disabled []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sources SET enabled = 1`); err != nil {
			return err
		}
		if len(disabled) == 0 {
			return nil
		}
		args := make([]any, len(disabled))
		for i, id := range disabled {
			args[i] = id
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE sources SET enabled = 0 WHERE id IN (`+placeholders(len(args))+`)`, args...)
		return err
	})
}

// SourceHealth aggregates mirror tracking per registry row, enabled first.
func (s *Store) SourceHealth(ctx context.Context) ([]domain.SourceHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.enabled,
		       COUNT(ss.id),
		       COALESCE(SUM(CASE WHEN ss.consecutive_failures > 0 THEN 1 ELSE 0 END), 0),
		       MAX(ss.last_checked_at)
		FROM sources s
		LEFT JOIN series_sources ss ON ss.source_id = s.id
		GROUP BY s.id
		ORDER BY s.enabled DESC, s.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query source health: %w", err)
	}
	defer rows.Close()

	var out []domain.SourceHealth
	for rows.Next() {
		var (
			h           domain.SourceHealth
			enabled     int
			lastChecked sql.NullString
		)
		if err := rows.Scan(&h.SourceID, &h.Name, &enabled, &h.TotalSeries, &h.FailingCount, &lastChecked); err != nil {
			return nil, err
		}
		h.Enabled = enabled == 1
		if h.LastCheckedAt, err = parseNullableTime(lastChecked); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNoRows(sql.ErrNoRows, what)
	}
	return nil
}
