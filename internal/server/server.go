// Package server exposes the pipeline over HTTP.
//
// The server accepts schematic documents, runs the full pipeline, and
// persists run reports to a report store. Artifacts are returned inline,
// base64-encoded by the JSON codec.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/schemforge/schemforge/pkg/pipeline"
	"github.com/schemforge/schemforge/pkg/report"
)

// Default server timeouts.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultListLimit caps the number of reports returned by the list endpoint.
const DefaultListLimit = 50

// Server handles pipeline runs over HTTP.
type Server struct {
	runner *pipeline.Runner
	store  report.Store
	logger *log.Logger
}

// New creates a server backed by the given runner and report store.
// A nil store falls back to an in-memory store, a nil logger to the
// default logger.
func New(runner *pipeline.Runner, store report.Store, logger *log.Logger) *Server {
	if store == nil {
		store = report.NewMemoryStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, store: store, logger: logger}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// logRequests logs each request with method, path, and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}
