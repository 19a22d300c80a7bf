package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/config"
)

// Server represents the HTTP server for the landing page, the auth pages and
// the admin dashboard.
type Server struct {
	config   config.ServerConfig
	handler  http.Handler
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new server. files serves local bucket objects under
// /files/ and is nil when the bucket lives in S3.
func NewServer(cfg config.ServerConfig, h *Handlers, am *auth.Manager, health *HealthChecker, files http.Handler) *Server {
	router := SetupRoutes(h, am, health, files, cfg.AllowedOrigins)
	return &Server{
		config:   cfg,
		handler:  router,
		handlers: h,
		router:   router,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// Uploads go through this server, so reads get a generous window.
		ReadTimeout:       2 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
