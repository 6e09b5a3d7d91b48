package retryx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net error" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := New(3, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 0))
	require.True(t, p.ShouldRetry(errors.New("boom"), 0))
	require.True(t, p.ShouldRetry(errors.New("boom"), 2))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
	require.True(t, p.ShouldRetry(timeoutErr{timeout: true}, 0))
	require.False(t, p.ShouldRetry(timeoutErr{timeout: false}, 0))
}

func TestShouldRetryClientTimeout(t *testing.T) {
	t.Parallel()

	p := New(3, 10*time.Millisecond, 100*time.Millisecond)

	// An http.Client timeout surfaces as a url.Error whose inner error
	// also satisfies errors.Is(err, context.DeadlineExceeded). It is a
	// per-request timeout, not the run's deadline, and must be retried.
	clientTimeout := &url.Error{
		Op:  "Get",
		URL: "https://www.gutenberg.org/cache/epub/feeds/rdf-files.tar.zip",
		Err: context.DeadlineExceeded,
	}
	require.True(t, p.ShouldRetry(clientTimeout, 0))
	require.True(t, p.ShouldRetry(fmt.Errorf("fetch archive: %w", clientTimeout), 0))

	// The bare sentinel means the run's own context expired; never retry.
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := New(5, 10*time.Millisecond, 80*time.Millisecond)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()

	p := New(3, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Sleep(ctx, 1), context.Canceled)
}
