// Package api serves the operational HTTP surface: liveness, Prometheus
// metrics and a snapshot of the current run statistics. It deliberately
// exposes nothing from the article store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/consumer"
)

// StatsFunc supplies the current run statistics for /stats.
type StatsFunc func() consumer.Stats

// Server is the operational HTTP server.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// New builds the server with its routes mounted.
func New(addr string, stats StatsFunc, logger *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats()); err != nil {
			logger.Warn("encode stats", zap.Error(err))
		}
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in a background goroutine. Listen errors other than a clean
// close are logged, not fatal: the pipeline can run without its ops surface.
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
