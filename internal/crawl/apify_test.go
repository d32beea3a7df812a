package crawl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appvine/apptrack/internal/apperr"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Token:   "test-token",
		BaseURL: baseURL,
		Wait:    5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
	require.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestRunRequiresURL(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://unused.invalid")
	_, err := client.Run(context.Background(), "", 0)
	require.Error(t, err)
	require.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestRunFetchesDatasetItems(t *testing.T) {
	t.Parallel()

	var runBody runInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NotContains(t, r.URL.RawQuery, "token")
		switch {
		case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/v2/acts/"):
			require.Contains(t, r.URL.RawQuery, "waitForFinish=5")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&runBody))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":"run-1","status":"SUCCEEDED","defaultDatasetId":"ds-1"}}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/datasets/ds-1/items"):
			_, _ = w.Write([]byte(`[{"url":"https://example.com/careers","title":"Careers","text":"We are hiring"}]`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	pages, err := client.Run(context.Background(), "https://example.com/careers", 0)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "We are hiring", pages[0].Text)

	// Unspecified max requests falls back to the default bound.
	require.Equal(t, 10, runBody.MaxRequestsPerCrawl)
	require.Len(t, runBody.StartURLs, 1)
	require.Equal(t, "https://example.com/careers", runBody.StartURLs[0].URL)
}

func TestRunPropagatesUpstreamStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Run(context.Background(), "https://example.com", 5)
	require.Error(t, err)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, apperr.KindExternal, e.Kind)
	require.Equal(t, http.StatusPaymentRequired, e.StatusCode)
	require.Contains(t, e.Error(), "quota exceeded")
}

func TestRunRejectsUnfinishedRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"run-2","status":"ABORTED","defaultDatasetId":"ds-2"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Run(context.Background(), "https://example.com", 5)
	require.Error(t, err)
	require.Equal(t, apperr.KindExternal, apperr.KindOf(err))
	require.Contains(t, err.Error(), "ABORTED")
}

func TestRunHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can watch for client disconnect
		// and cancel the request context; otherwise Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Run(ctx, "https://example.com", 5)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
