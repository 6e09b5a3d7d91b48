// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	booksTotal          *prometheus.CounterVec
	textBytesTotal      prometheus.Counter
	bookDurationSeconds prometheus.Histogram
	runsTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		booksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gutenberg_books_total",
				Help: "Total number of catalog entries processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		textBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gutenberg_text_bytes_total",
				Help: "Total bytes of cleaned book text persisted.",
			},
		)

		bookDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gutenberg_book_duration_seconds",
				Help:    "Histogram of per-book processing latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gutenberg_runs_total",
				Help: "Total number of pipeline runs, labeled by final status.",
			},
			[]string{"status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveBook records one per-book outcome and its processing time.
func ObserveBook(outcome string, textBytes int, duration time.Duration) {
	Init()
	booksTotal.WithLabelValues(outcome).Inc()
	if textBytes > 0 {
		textBytesTotal.Add(float64(textBytes))
	}
	bookDurationSeconds.Observe(duration.Seconds())
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}
