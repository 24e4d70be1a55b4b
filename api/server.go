// Package api provides the HTTP REST API for Recall.
//
// This package exposes the note lifecycle over HTTP, enabling
// programmatic access from editors, scripts and automation pipelines.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                      API Endpoints                      │
//	├─────────────────────────────────────────────────────────┤
//	│                                                         │
//	│  GET    /health          →  liveness probe              │
//	│  GET    /ready           →  readiness probe             │
//	│  POST   /api/notes       →  ingest a note               │
//	│  GET    /api/notes       →  list notes                  │
//	│  DELETE /api/notes/{id}  →  delete a note               │
//	│  POST   /api/search      →  semantic search             │
//	│  GET    /api/stats       →  collection statistics       │
//	│  POST   /api/reset       →  wipe the collection         │
//	│                                                         │
//	└─────────────────────────────────────────────────────────┘
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: Health check endpoints (/health, /ready)
//   - notes.go: Note lifecycle endpoints (ingest, list, delete, stats, reset)
//   - search.go: Semantic search endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallhq/recall/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Ingest of a large note can take a while, embedding included.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for Recall's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health *HealthHandler
	notes  *NotesHandler
	search *SearchHandler
}

// NewServer creates a new HTTP server with all routes registered.
// pool is used only for readiness checks and may be nil in tests.
func NewServer(pool *pgxpool.Pool, notes NoteService, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(pool, logger),
		notes:  NewNotesHandler(notes, logger),
		search: NewSearchHandler(notes, logger),
	}

	// Register all routes
	s.health.RegisterRoutes(mux)
	s.notes.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
