// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nightshade-games/orchestrator/internal/config"
	"github.com/nightshade-games/orchestrator/internal/middleware"
	"github.com/nightshade-games/orchestrator/internal/models"
)

// NewRouter assembles the chi router: shared middleware, the HTTP
// surface, the metrics endpoint, and the WebSocket upgrade route.
func NewRouter(cfg config.ServerConfig, h *Handler, ws http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Prometheus)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimitReqs > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, models.CodeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, models.CodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/admin/auth", h.AdminAuth)
		r.With(h.RequireBearer).Get("/admin/logs", h.AdminLogs)

		r.Get("/tokens", h.Tokens)
		r.Get("/session", h.Session)
		r.Get("/state", h.State)

		r.Post("/scan", h.Scan)
		r.Post("/scan/batch", h.ScanBatch)
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws)

	return r
}
