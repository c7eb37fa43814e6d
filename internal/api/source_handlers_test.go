package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/domain"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/service"
)

func TestListSources(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	sources := decodeData[struct {
		Sources []*domain.Source `json:"sources"`
	}](t, resp).Sources
	require.Len(t, sources, 1)
	assert.Equal(t, "mangadex", sources[0].ID)
	assert.True(t, sources[0].Enabled)
}

func TestSourcesHealth(t *testing.T) {
	ts := setupTestServer(t)
	ts.importSerie(t, "abc", "Blue Period")
	_, err := ts.importer.Import(ts.ctx, "mangadex", "def")
	require.NoError(t, err)

	resp := ts.api.Get("/api/v1/sources/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decodeData[service.SourcesHealth](t, resp)
	assert.Equal(t, 1, health.Totals.Sources)
	assert.Equal(t, 1, health.Totals.TotalSeries)
	assert.Equal(t, 1, health.Totals.Waiting)
}

func TestSyncSources(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/sources/sync")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, queue.SourcesSync, decodeData[domain.Job](t, resp).Queue)
}

func TestRefreshSource(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/sources/mangadex/refresh")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, queue.UpdateScheduler, decodeData[domain.Job](t, resp).Queue)

	resp = ts.api.Post("/api/v1/sources/nowhere/refresh")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
