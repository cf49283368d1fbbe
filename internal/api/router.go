package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shvydak/homelab-dashboard/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// Unauthenticated probes
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/me", s.handleMe)
			r.With(s.requireRole(auth.RoleAdmin)).Post("/ws-ticket", s.handleWSTicket)
		})
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Get("/health", s.handleDashboardHealth)
		r.With(s.authMiddleware).Get("/", s.handleDashboard)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.optionalAuthMiddleware).Get("/info", s.handleInfo)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Get("/email/{email}", s.handleGetUserByEmail)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetUser)
					r.Put("/", s.handleUpdateUser)
					r.With(s.requireRole(auth.RoleAdmin)).Delete("/", s.handleDeleteUser)
				})
			})

			r.With(s.requireRole(auth.RoleAdmin)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleNotFound answers unknown routes with the standard envelope.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Route "+r.URL.Path+" not found")
}

// handleMethodNotAllowed answers known paths hit with the wrong method.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed on "+r.URL.Path)
}
