// Package api exposes the scoring pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudenterpo/fraudshield/internal/combiner"
	"github.com/prudenterpo/fraudshield/internal/domain"
	"github.com/prudenterpo/fraudshield/internal/rules"
	"github.com/prudenterpo/fraudshield/internal/velocity"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, c *combiner.Combiner, screening *rules.ScreeningEngine, vel *velocity.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, c, screening, vel, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes
	router.Route("/api/v1", func(r chi.Router) {
		// Transaction analysis
		r.Post("/transactions/analyze", handler.Analyze)
		r.Get("/transactions/{id}", handler.GetTransaction)
		r.Get("/transactions/{id}/assessment", handler.GetTransactionAssessment)

		// Assessment retrieval
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Operator feedback
		r.Post("/feedback/fraud", handler.Feedback)

		// Reporting
		r.Get("/stats/overview", handler.Stats)

		// Screening rule management
		r.Get("/screening-rules", handler.ListScreeningRules)
		r.Get("/screening-rules/{id}", handler.GetScreeningRule)
		r.Post("/screening-rules", handler.CreateScreeningRule)
		r.Post("/screening-rules/reload", handler.ReloadScreeningRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
