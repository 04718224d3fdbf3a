// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/watcher"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	pipeline   *pipeline.Pipeline
	cfg        *config.Config
	configPath string
	watch      *watcher.Watcher
	logger     *zap.Logger
	server     *http.Server
	cfgMu      sync.Mutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatcher attaches a directory watcher so the watch management endpoints
// are served. configPath, when non-empty, is where directory changes persist.
func WithWatcher(w *watcher.Watcher, configPath string) ServerOption {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(p *pipeline.Pipeline, cfg *config.Config, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		pipeline: p,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/documents", s.handleIngestDocument)
	r.Post("/api/v1/documents/upload", s.handleUploadDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
