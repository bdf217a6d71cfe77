// Package api exposes the HTTP surface: profile management, article
// listing, personalization, and operational endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// Router wires handlers into the chi mux. Rate limits are per client IP;
// the refresh endpoint additionally requires the internal API key.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Route("/news", func(r chi.Router) {
			r.With(s.requireInternalKey).Post("/refresh", s.handleRefresh)
			r.Post("/personalize", s.handlePersonalize)
			r.Get("/articles", s.handleListArticles)
			r.Get("/articles/{articleID}", s.handleGetArticle)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/profile", s.handleSaveProfile)
			r.Get("/profile/{userID}", s.handleGetProfile)
			r.Post("/activity", s.handleLogActivity)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.handleHealth)
			r.With(s.requireInternalKey).Get("/stats", s.handleStats)
		})
	})

	return r
}
