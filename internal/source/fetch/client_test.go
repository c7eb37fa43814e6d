package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DokushoHQ/backends/internal/config"
	"github.com/DokushoHQ/backends/internal/logger"
	"github.com/DokushoHQ/backends/internal/ratelimit"
	"github.com/DokushoHQ/backends/internal/source"
)

func newTestClient() *Client {
	return New(config.SourcesConfig{UserAgent: "dokusho-test", Timeout: 5 * time.Second},
		ratelimit.New(1000, 1000), logger.Discard())
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dokusho-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://ref/", r.Header.Get("Referer"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := newTestClient()
	body, err := c.Get(context.Background(), "src", server.URL+"/list",
		url.Values{"page": {"2"}}, http.Header{"Referer": {"https://ref/"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "value", payload["key"])
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := newTestClient().PostJSON(context.Background(), "src", server.URL, map[string]string{"key": "value"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, "search=one+piece", string(raw))
	}))
	defer server.Close()

	_, err := newTestClient().PostForm(context.Background(), "src", server.URL, url.Values{"search": {"one piece"}}, nil)
	require.NoError(t, err)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, source.ErrNotFound},
		{http.StatusTooManyRequests, source.ErrRateLimited},
		{http.StatusForbidden, source.ErrBlocked},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestClient().Get(context.Background(), "src", server.URL, nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var fe *source.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "src", fe.Source)
			assert.Equal(t, tt.status, fe.StatusCode)
		})
	}
}

func TestClient_TransportErrorIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := newTestClient().Get(context.Background(), "src", addr, nil, nil)
	var fe *source.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
}

func TestClient_ConfigureThrottles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer server.Close()

	c := newTestClient()
	c.Configure("slow", source.APIInformation{RateLimitMax: 1, RateLimitDuration: time.Hour})

	ctx := context.Background()
	_, err := c.Get(ctx, "slow", server.URL, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, "slow", server.URL, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")

	// Other sources are unaffected.
	_, err = c.Get(context.Background(), "fast", server.URL, nil, nil)
	assert.NoError(t, err)
}
