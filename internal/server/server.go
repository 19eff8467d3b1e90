// Package server provides the HTTP API for kanren.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/internal/syncer"
)

// Server is the HTTP server for the kanren API.
type Server struct {
	syncer  *syncer.Syncer
	journal *storage.Journal
	cfg     *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. journal may be nil.
func NewServer(s *syncer.Syncer, journal *storage.Journal, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		syncer:  s,
		journal: journal,
		cfg:     cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/related", s.handleRelated)
	r.Post("/api/v1/sync", s.handleSyncAll)
	r.Post("/api/v1/sync/note", s.handleSyncNote)
	r.Delete("/api/v1/blocks", s.handleRemoveBlocks)
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
