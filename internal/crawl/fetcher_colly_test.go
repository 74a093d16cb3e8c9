package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollyFetcherFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "harvest-test-agent", r.UserAgent())
		_, _ = w.Write([]byte("<html><body>static body</body></html>"))
	}))
	defer srv.Close()

	f, err := NewCollyFetcher(FetcherConfig{
		UserAgent:      "harvest-test-agent",
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "static body")
}

func TestCollyFetcherErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f, err := NewCollyFetcher(FetcherConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestCollyFetcherReusableAcrossURLs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f, err := NewCollyFetcher(FetcherConfig{RequestTimeout: 5 * time.Second}, zap.NewNop())
	require.NoError(t, err)

	for _, path := range []string{"/used/mumbai/", "/used/pune/", "/used/mumbai/"} {
		body, err := f.Fetch(context.Background(), srv.URL+path)
		require.NoError(t, err)
		assert.Equal(t, path, string(body))
	}
}
