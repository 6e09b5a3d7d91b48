// Package retryx implements the bounded retry policy shared by the two
// fetch components. Transient network failures get a jittered exponential
// backoff; context cancellation is never retried.
package retryx

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// Policy implements gutenberg.RetryPolicy with jittered exponential backoff.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// New builds a policy. maxAttempts bounds how many failed attempts may be
// retried; the attempt index passed to ShouldRetry is zero-based.
func New(maxAttempts int, baseDelay, maxDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// Default returns the policy used for the catalog archive download.
func Default() *Policy {
	return New(5, time.Second, 30*time.Second)
}

// ShouldRetry decides whether the error is retryable.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	// HTTP client timeouts satisfy errors.Is(err, context.DeadlineExceeded)
	// since Go 1.16, so the net.Error check must run first or they would
	// never be retried. A bare deadline/cancellation is the run's context.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *Policy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Sleep blocks for the attempt's backoff or until the context finishes.
func (p *Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
