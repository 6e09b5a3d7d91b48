package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// EnsureArchive downloads the catalog archive unless a complete local copy
// already exists. A partially downloaded file is resumed with a Range
// request. Returns the local archive path.
func (s *Source) EnsureArchive(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.DataDir, 0o750); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", s.cfg.DataDir, err)
	}
	target := filepath.Join(s.cfg.DataDir, ArchiveName)

	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		s.logger.Info("Catalog archive already cached; skipping download",
			zap.String("path", target))
		return target, nil
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = s.download(ctx, target)
		if lastErr == nil {
			return target, nil
		}
		if s.retry == nil || !s.retry.ShouldRetry(lastErr, attempt) {
			break
		}
		s.logger.Warn("Catalog download failed; retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
		if err := sleepBackoff(ctx, s.retry.Backoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("download catalog archive: %w", lastErr)
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// download fetches the archive into target+".partial", resuming whatever is
// already on disk, and renames on completion.
func (s *Source) download(ctx context.Context, target string) error {
	partial := target + ".partial"

	total, err := s.remoteSize(ctx)
	if err != nil {
		return err
	}

	var offset int64
	if info, statErr := os.Stat(partial); statErr == nil {
		offset = info.Size()
	}
	if total > 0 && offset >= total {
		return os.Rename(partial, target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedsURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", s.cfg.FeedsURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Server ignored the Range header; restart from scratch.
		offset = 0
	case resp.StatusCode == http.StatusPartialContent:
	default:
		return fmt.Errorf("fetch %s: unexpected status %d", s.cfg.FeedsURL, resp.StatusCode)
	}

	mode := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}
	f, err := os.OpenFile(partial, mode, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", partial, err)
	}

	written, copyErr := io.Copy(f, resp.Body)
	if closeErr := f.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", partial, copyErr)
	}

	s.logger.Info("Catalog archive downloaded",
		zap.Int64("bytes", offset+written),
		zap.String("path", target))
	return os.Rename(partial, target)
}

// remoteSize asks the server for the archive's Content-Length. Zero means
// the server did not report one; the download proceeds without resume math.
func (s *Source) remoteSize(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.cfg.FeedsURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build head request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", s.cfg.FeedsURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("head %s: unexpected status %d", s.cfg.FeedsURL, resp.StatusCode)
	}
	length := resp.Header.Get("Content-Length")
	if length == "" {
		return 0, nil
	}
	total, err := strconv.ParseInt(length, 10, 64)
	if err != nil {
		return 0, nil
	}
	return total, nil
}
