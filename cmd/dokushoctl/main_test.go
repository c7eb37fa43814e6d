package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/http/response"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]string
}

// fakeAPI serves canned envelopes keyed by "METHOD path".
func fakeAPI(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &rec.Body))
		}
		seen = append(seen, rec)

		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			response.NotFound(w, "route "+r.URL.Path+" not found", nil)
			return
		}
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func ok(data any) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		response.Success(w, data, nil)
	}
}

func runCLI(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /api/v1/admin/reindex": ok(map[string]int{"indexed": 3}),
	})

	var body struct {
		Indexed int `json:"indexed"`
	}
	err := NewClient(srv.URL+"/", time.Second).Get(context.Background(), "/api/v1/admin/reindex", &body)
	require.NoError(t, err)
	assert.Equal(t, 3, body.Indexed)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/imports/url": func(w http.ResponseWriter) {
			response.TooManyRequests(w, "import rate limit exceeded", nil)
		},
	})

	err := NewClient(srv.URL, time.Second).Post(context.Background(), "/api/v1/imports/url", map[string]string{"url": "x"}, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Equal(t, "UNAVAILABLE", apiErr.Code)
	assert.Equal(t, "UNAVAILABLE: import rate limit exceeded", apiErr.Error())
}

func TestClient_NonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewClient(srv.URL, time.Second).Get(context.Background(), "/api/v1/queues", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "bad gateway")
}

func TestQueuesCommand(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /api/v1/queues": ok(map[string]any{"queues": []map[string]any{
			{"name": "serie-inserter", "display_name": "Serie Inserter", "concurrency": 4,
				"counts": map[string]any{"waiting": 2, "completed": 12345, "paused": true}},
		}}),
	})

	out, err := runCLI(t, srv.URL, "queues")
	require.NoError(t, err)
	assert.Contains(t, out, "serie-inserter")
	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "yes")
}

func TestQueuePauseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		path    string
		wantErr bool
	}{
		{name: "one queue", args: []string{"queues", "pause", "chapter-data"}, path: "/api/v1/queues/chapter-data/pause"},
		{name: "all queues", args: []string{"queues", "pause", "--all"}, path: "/api/v1/queues/pause-all"},
		{name: "missing target", args: []string{"queues", "pause"}, wantErr: true},
		{name: "both targets", args: []string{"queues", "pause", "--all", "chapter-data"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
				"POST /api/v1/queues/chapter-data/pause": ok(map[string]any{"queue": "chapter-data", "paused": true}),
				"POST /api/v1/queues/pause-all":          ok(map[string]any{"paused": true}),
			})

			_, err := runCLI(t, srv.URL, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, *seen)
				return
			}
			require.NoError(t, err)
			require.Len(t, *seen, 1)
			assert.Equal(t, tt.path, (*seen)[0].Path)
		})
	}
}

func TestImportCommand(t *testing.T) {
	srv, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/imports/url": ok(map[string]any{"source_id": "mangadex", "external_id": "abc", "job": map[string]any{"id": "j1"}}),
		"POST /api/v1/imports":     ok(map[string]any{"source_id": "weebcentral", "external_id": "xyz", "job": map[string]any{"id": "j2"}}),
	})

	out, err := runCLI(t, srv.URL, "import", "https://mangadex.org/title/abc")
	require.NoError(t, err)
	assert.Contains(t, out, "mangadex/abc (job j1)")

	out, err = runCLI(t, srv.URL, "import", "--source", "weebcentral", "--id", "xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "weebcentral/xyz (job j2)")

	require.Len(t, *seen, 2)
	assert.Equal(t, map[string]string{"url": "https://mangadex.org/title/abc"}, (*seen)[0].Body)
	assert.Equal(t, map[string]string{"source_id": "weebcentral", "external_id": "xyz"}, (*seen)[1].Body)

	_, err = runCLI(t, srv.URL, "import", "--source", "weebcentral")
	require.Error(t, err)
}

func TestRetryFailedCommand(t *testing.T) {
	srv, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/admin/retry-failed":             ok(map[string]int{"retried": 1}),
		"POST /api/v1/queues/page-retry/retry-failed": ok(map[string]int{"retried": 1500}),
	})

	out, err := runCLI(t, srv.URL, "retry-failed")
	require.NoError(t, err)
	assert.Contains(t, out, "Requeued 1 item\n")

	out, err = runCLI(t, srv.URL, "retry-failed", "--queue", "page-retry")
	require.NoError(t, err)
	assert.Contains(t, out, "Requeued 1,500 items")
	assert.Len(t, *seen, 2)
}

func TestSourcesCommand(t *testing.T) {
	checked := time.Now().Add(-2 * time.Hour)
	srv, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /api/v1/sources/health": ok(map[string]any{
			"sources": []map[string]any{
				{"source_id": "mangadex", "name": "MangaDex", "enabled": true, "total_series": 1200, "failing_count": 3, "last_checked_at": checked},
				{"source_id": "japscan", "name": "JapScan", "enabled": false},
			},
			"totals": map[string]any{"sources": 2, "enabled": 1, "total_series": 1200, "failing_count": 3},
		}),
	})

	out, err := runCLI(t, srv.URL, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "1 enabled of 2")
}

func TestParseURLCommand_JSON(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/v1/imports/parse-url": ok(map[string]string{"source_id": "mangadex", "serie_id": "abc"}),
	})

	out, err := runCLI(t, srv.URL, "--json", "parse-url", "https://mangadex.org/title/abc")
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "abc", parsed["serie_id"])
}
