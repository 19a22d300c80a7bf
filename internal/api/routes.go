package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/leadfunnel/internal/auth"
)

// SetupRoutes configures all routes. Everything under /admin sits behind the
// session edge guard, so no dashboard handler runs for a visitor without a
// session.
func SetupRoutes(h *Handlers, am *auth.Manager, health *HealthChecker, files http.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Health checks (no auth required)
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}

	// Landing page
	r.Get("/", h.HandleLanding)
	r.Post("/subscribe", h.HandleSubscribe)
	r.Post("/premium", h.HandlePremium)
	r.Get("/download", h.HandleDownload)
	if files != nil {
		r.Handle("/files/*", files)
	}

	// JSON variants of the landing actions, callable from other origins
	r.Route("/api", func(r chi.Router) {
		if len(allowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: allowedOrigins,
				AllowedMethods: []string{"POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				MaxAge:         300,
			}))
		}
		r.Post("/subscribe", h.HandleSubscribeAPI)
		r.Post("/premium-click", h.HandlePremiumAPI)
	})

	// Auth routes (no session required)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.HandleLoginPage)
		r.Post("/login", h.HandleLogin)
		r.Get("/signup", h.HandleSignupPage)
		r.Post("/signup", h.HandleSignup)
		r.Post("/login-link", h.HandleLoginLink)
		r.Get("/callback", h.HandleCallback)
		r.Get("/error", h.HandleAuthError)
		r.Post("/logout", h.HandleLogout)
		r.Get("/google/login", am.HandleGoogleLogin)
		r.Get("/google/callback", am.HandleGoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(am.RequireSession)
			r.Get("/set-password", h.HandleSetPasswordPage)
			r.Post("/set-password", h.HandleSetPassword)
		})
	})

	// Admin dashboard (edge guard on the whole namespace)
	r.Route("/admin", func(r chi.Router) {
		r.Use(am.RequireSession)
		r.Get("/", h.HandleAdmin)
		r.Post("/files", h.HandleUploadForm)
		r.Post("/files/delete", h.HandleDeleteForm)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", h.GetDashboard)
			r.Get("/files", h.ListFiles)
			r.Post("/files", h.UploadFile)
			r.Delete("/files/{name}", h.DeleteFile)
		})
	})

	return r
}
