package text

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
	"github.com/gutenlab/gutenberg-pipeline/internal/retryx"
)

func newTestFetcher(t *testing.T, cacheDir, baseURL string) *Fetcher {
	t.Helper()
	f, err := NewFetcher(
		FetcherConfig{
			BaseURL:   baseURL,
			CacheDir:  cacheDir,
			UserAgent: "gutenberg-pipeline-test/1.0",
			Timeout:   5 * time.Second,
		},
		retryx.New(3, time.Millisecond, 5*time.Millisecond),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return f
}

func TestFetchTextCacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "84.txt"), []byte("cached body"), 0o640))

	f := newTestFetcher(t, dir, "")
	body, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 84, TextURL: srv.URL + "/84.txt"})
	require.NoError(t, err)
	require.Equal(t, "cached body", body)
	require.Zero(t, hits.Load())
}

func TestFetchTextDownloadsAndCaches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("full text"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := newTestFetcher(t, dir, "")

	body, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 84, TextURL: srv.URL + "/84.txt"})
	require.NoError(t, err)
	require.Equal(t, "full text", body)

	cached, err := os.ReadFile(filepath.Join(dir, "84.txt"))
	require.NoError(t, err)
	require.Equal(t, "full text", string(cached))
}

func TestFetchTextMissingRemoteIsNoText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, t.TempDir(), "")
	_, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 99999, TextURL: srv.URL + "/nope.txt"})
	require.ErrorIs(t, err, gutenberg.ErrNoText)
}

func TestFetchTextNoURLNoFallback(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(t, t.TempDir(), "")
	_, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 77})
	require.ErrorIs(t, err, gutenberg.ErrNoText)
}

func TestFetchTextFallbackURLPattern(t *testing.T) {
	t.Parallel()

	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte("fallback text"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, t.TempDir(), srv.URL+"/cache/epub/%d/pg%d.txt")
	body, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 1342})
	require.NoError(t, err)
	require.Equal(t, "fallback text", body)
	require.Equal(t, "/cache/epub/1342/pg1342.txt", path.Load())
}

func TestFetchTextRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "third time lucky")
	}))
	defer srv.Close()

	f := newTestFetcher(t, t.TempDir(), "")
	body, err := f.FetchText(context.Background(), gutenberg.BookRecord{ID: 11, TextURL: srv.URL + "/11.txt"})
	require.NoError(t, err)
	require.Equal(t, "third time lucky", body)
	require.EqualValues(t, 3, hits.Load())
}

func TestFetchTextCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t, t.TempDir(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchText(ctx, gutenberg.BookRecord{ID: 12, TextURL: srv.URL + "/12.txt"})
	require.Error(t, err)
}
