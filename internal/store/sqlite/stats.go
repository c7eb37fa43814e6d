package sqlite

import (
	"context"
	"fmt"
)

// CatalogStats are row totals across the catalog.
type CatalogStats struct {
	Series        int `json:"series"`
	DeletedSeries int `json:"deletedSeries"`
	SerieSources  int `json:"serieSources"`
	Chapters      int `json:"chapters"`
	Pages         int `json:"pages"`
	MissingPages  int `json:"missingPages"`
}

// Stats counts catalog rows.
func (s *Store) Stats(ctx context.Context) (CatalogStats, error) {
	var st CatalogStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM series WHERE soft_deleted_at IS NULL),
			(SELECT COUNT(*) FROM series WHERE soft_deleted_at IS NOT NULL),
			(SELECT COUNT(*) FROM series_sources),
			(SELECT COUNT(*) FROM chapters),
			(SELECT COUNT(*) FROM chapter_pages),
			(SELECT COUNT(*) FROM chapter_pages WHERE url IS NULL OR url = '')`,
	).Scan(&st.Series, &st.DeletedSeries, &st.SerieSources, &st.Chapters, &st.Pages, &st.MissingPages)
	if err != nil {
		return st, fmt.Errorf("catalog stats: %w", err)
	}
	return st, nil
}
