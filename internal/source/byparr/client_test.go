package byparr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/ratelimit"
	"github.com/DokushoHQ/backends/internal/source"
	"github.com/DokushoHQ/backends/internal/source/fetch"
)

func newTestClient(t *testing.T, handler func(cmd command) any) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1", r.URL.Path)
		var cmd command
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cmd))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handler(cmd))
	}))
	t.Cleanup(server.Close)

	fc := fetch.New(config.SourcesConfig{}, ratelimit.New(1000, 1000), logger.Discard())
	return New(fc, server.URL+"/")
}

func TestClient_Get(t *testing.T) {
	c := newTestClient(t, func(cmd command) any {
		assert.Equal(t, "request.get", cmd.Cmd)
		assert.Equal(t, "https://site/page", cmd.URL)
		assert.Equal(t, int64(60000), cmd.MaxTimeout)
		assert.Equal(t, "window.x = 1", cmd.InitJS)
		assert.Equal(t, "window.x", cmd.JS)
		return map[string]any{
			"status":  "ok",
			"message": "",
			"solution": map[string]any{
				"url":      "https://site/page",
				"status":   200,
				"response": "<html>ok</html>",
				"jsResult": []string{"a", "b"},
			},
		}
	})

	sol, err := c.Get(context.Background(), "src", "https://site/page", Options{InitJS: "window.x = 1", JS: "window.x"})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", sol.Response)

	var result []string
	require.NoError(t, json.Unmarshal(sol.JSResult, &result))
	assert.Equal(t, []string{"a", "b"}, result)
}

func TestClient_Post(t *testing.T) {
	c := newTestClient(t, func(cmd command) any {
		assert.Equal(t, "request.post", cmd.Cmd)
		assert.Equal(t, "search=one", cmd.PostData)
		assert.Equal(t, int64(5000), cmd.MaxTimeout)
		return map[string]any{"status": "ok", "solution": map[string]any{"status": 200, "response": "[]"}}
	})

	sol, err := c.Post(context.Background(), "src", "https://site/ls/", "search=one", Options{MaxTimeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "[]", sol.Response)
}

func TestClient_Errors(t *testing.T) {
	t.Run("proxy error", func(t *testing.T) {
		c := newTestClient(t, func(command) any {
			return map[string]any{"status": "error", "message": "challenge not solved"}
		})
		_, err := c.Get(context.Background(), "src", "https://site", Options{})
		assert.ErrorIs(t, err, ErrProxy)
		var fe *source.FetchError
		assert.ErrorAs(t, err, &fe)
	})

	t.Run("upstream status", func(t *testing.T) {
		c := newTestClient(t, func(command) any {
			return map[string]any{"status": "ok", "solution": map[string]any{"status": 404}}
		})
		_, err := c.Get(context.Background(), "src", "https://site", Options{})
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("not configured", func(t *testing.T) {
		c := New(fetch.New(config.SourcesConfig{}, nil, logger.Discard()), "")
		_, err := c.Get(context.Background(), "src", "https://site", Options{})
		assert.ErrorIs(t, err, ErrProxy)
	})
}
