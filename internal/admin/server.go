// Package admin runs the optional health/metrics listener that serves
// alongside a pipeline run.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/metrics"
)

// Server exposes /healthz and /metrics while a run is in flight.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the admin server on the given port.
func New(port int, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a goroutine until the context finishes, then shuts down
// gracefully. Listener errors are logged, never fatal: losing metrics must
// not abort an ingestion run.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.logger.Info("Admin listener starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("Admin listener failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Admin listener shutdown failed", zap.Error(err))
		}
	}()
}
