// Package server exposes the plagiarism checks over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/raphaelgruber/plagscan/internal/service"
)

// defaultMaxUpload bounds request bodies when Options.MaxUploadBytes is unset.
const defaultMaxUpload = 100 << 20

// multipartMemory is kept in memory while parsing uploads; the rest spills to disk.
const multipartMemory = 32 << 20

// Options configures the HTTP server.
type Options struct {
	Version        string
	MaxUploadBytes int64
}

// Server routes HTTP requests to the batch service.
type Server struct {
	svc       *service.BatchService
	logger    *slog.Logger
	version   string
	maxUpload int64
	router    chi.Router
}

// New creates a server with all routes registered.
func New(svc *service.BatchService, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	s := &Server{
		svc:       svc,
		logger:    logger,
		version:   opts.Version,
		maxUpload: opts.MaxUploadBytes,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/analyze-simple", s.handleAnalyzeSimple)
	r.Post("/analyze-paraphrase", s.handleAnalyzeParaphrase)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload-assignment", s.handleUpload)
	})
	return r
}
