// Package server provides the HTTP API for semdex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/config"
	"github.com/taskmesh/semdex/internal/indexer"
	"github.com/taskmesh/semdex/internal/search"
	"github.com/taskmesh/semdex/internal/storage"
	"github.com/taskmesh/semdex/internal/vector"
)

// Server is the HTTP server for the semdex API.
type Server struct {
	service     *search.Service
	indexer     *indexer.Indexer
	store       storage.Store
	vectorIndex *vector.FlatIndex
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	service *search.Service,
	idx *indexer.Indexer,
	store storage.Store,
	vectorIndex *vector.FlatIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		service:     service,
		indexer:     idx,
		store:       store,
		vectorIndex: vectorIndex,
		config:      cfg,
		logger:      logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/search/keywords", s.handleSearchKeywords)
	r.Put("/api/v1/records", s.handleUpsertRecord)
	r.Get("/api/v1/records/{type}/{id}", s.handleGetRecord)
	r.Delete("/api/v1/records/{type}/{id}", s.handleDeleteRecord)
	r.Post("/api/v1/index/rebuild", s.handleRebuild)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
