// Package api exposes the diagnostics service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"diaghost/internal/config"
	"diaghost/internal/diagnostics"
	"diaghost/internal/storage"
	"diaghost/internal/telemetry"
	"diaghost/internal/workspace"
)

// ReloadFunc rebuilds the workspace snapshot and makes it current.
type ReloadFunc func(ctx context.Context) (*workspace.Solution, error)

// Deps are the components the server routes to. Store and Reload are optional.
type Deps struct {
	Service   *diagnostics.Service
	Telemetry *telemetry.Service
	Store     *storage.DB
	Reload    ReloadFunc
}

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	addr    string
	logger  *slog.Logger
	deps    Deps
	started time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(addr string, deps Deps, logger *slog.Logger, cfg config.ServerConfig) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		addr:    addr,
		logger:  logger,
		deps:    deps,
		router:  http.NewServeMux(),
		started: time.Now(),
	}

	s.registerRoutes()

	read := time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	if read <= 0 {
		read = 30 * time.Second
	}
	write := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	if write <= 0 {
		write = 120 * time.Second
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.applyMiddleware(s.router, cfg.Compression),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler, compress bool) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	if compress {
		handler = gzhttp.GzipHandler(handler)
	}
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}
