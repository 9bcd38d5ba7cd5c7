// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/blogrec/internal/config"
)

// NewRouter builds the chi router.
//
// Middleware order, outermost first: request ID, real IP, panic recovery,
// CORS, rate limiting, security headers, metrics.
func NewRouter(cfg *config.ServerConfig, h *Handler) http.Handler {
	mw := NewChiMiddleware(MiddlewareConfigFrom(cfg))

	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())

		r.Post("/actions/{action}/users/{userID}/items/{itemID}", h.RecordAction)

		r.Get("/recommendations/{userID}", h.GetRecommendations)
		r.Get("/recommendations/{userID}/similar", h.GetSimilar)

		r.Get("/items/popular", h.GetPopular)
		r.Get("/items/{itemID}/likes", h.GetLikes)

		r.Get("/status", h.GetStatus)
		r.Post("/admin/refresh", h.TriggerRefresh)
		r.Post("/admin/items", h.ImportItems)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
