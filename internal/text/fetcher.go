package text

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

// FetcherConfig controls per-book text fetching.
type FetcherConfig struct {
	// BaseURL is the fallback URL pattern (two %d verbs for the book id)
	// used when the catalog entry carries no text/plain file link.
	BaseURL   string
	CacheDir  string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements gutenberg.TextSource using the Colly collector,
// cache-first: a text already on disk never touches the network.
type Fetcher struct {
	cfg           FetcherConfig
	baseCollector *colly.Collector
	retry         gutenberg.RetryPolicy
	logger        *zap.Logger
}

// NewFetcher builds a Fetcher and ensures the cache directory exists.
func NewFetcher(cfg FetcherConfig, retry gutenberg.RetryPolicy, logger *zap.Logger) (*Fetcher, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("text cache dir is required")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create text cache dir %s: %w", cfg.CacheDir, err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	// colly v2.1.0's Async option sets async mode regardless of its
	// argument; synchronous is the collector default, so omit the option.
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		retry:         retry,
		logger:        logger,
	}, nil
}

// FetchText returns the raw text for the record. Missing remote files are
// a recoverable condition signalled via gutenberg.ErrNoText; the caller
// persists the record without content.
func (f *Fetcher) FetchText(ctx context.Context, record gutenberg.BookRecord) (string, error) {
	cachePath := f.cachePath(record.ID)
	if body, err := os.ReadFile(cachePath); err == nil {
		return string(body), nil
	}

	url := record.TextURL
	if url == "" {
		if f.cfg.BaseURL == "" {
			return "", gutenberg.ErrNoText
		}
		url = fmt.Sprintf(f.cfg.BaseURL, record.ID, record.ID)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, status, err := f.get(ctx, url)
		switch {
		case err == nil && status == http.StatusOK:
			if werr := os.WriteFile(cachePath, body, 0o640); werr != nil {
				f.logger.Warn("Failed to cache book text",
					zap.Int64("book_id", record.ID),
					zap.Error(werr))
			}
			return string(body), nil
		case status == http.StatusNotFound || status == http.StatusForbidden:
			// Many catalog entries have no hosted plain text.
			return "", gutenberg.ErrNoText
		case err == nil:
			lastErr = fmt.Errorf("fetch %s: unexpected status %d", url, status)
		default:
			lastErr = fmt.Errorf("fetch %s: %w", url, err)
		}
		if f.retry == nil || !f.retry.ShouldRetry(lastErr, attempt) {
			return "", lastErr
		}
		timer := time.NewTimer(f.retry.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// get performs one GET through a cloned collector, with response hooks
// capturing body and status.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, int, error) {
	collector := f.baseCollector.Clone()

	var (
		body   []byte
		status int
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case err := <-done:
		if status == http.StatusNotFound || status == http.StatusForbidden {
			return nil, status, nil
		}
		if err != nil {
			return nil, status, err
		}
		return body, status, nil
	}
}

func (f *Fetcher) cachePath(id int64) string {
	return filepath.Join(f.cfg.CacheDir, fmt.Sprintf("%d.txt", id))
}
