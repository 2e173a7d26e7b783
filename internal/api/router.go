// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xrss/brahma/internal/middleware"
)

// NewRouter builds the chi router with the relay's endpoints.
//
// The /ws route is registered outside the metrics middleware: the wrapping
// response writer does not implement http.Hijacker, which the websocket
// upgrade requires.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(h),
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(h))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/uniqueUsernameAndColor", h.UniqueIdentity)
		r.Get("/activeInterlocutors", h.ActiveInterlocutors)
	})

	r.Get("/ws", h.WebSocket)

	r.Route("/healthz", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func corsOrigins(h *Handler) []string {
	if h.config == nil || len(h.config.Security.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return h.config.Security.CORSOrigins
}

// rateLimit returns the configured per-IP limiter, or a pass-through when
// rate limiting is disabled.
func rateLimit(h *Handler) func(http.Handler) http.Handler {
	if h.config == nil || h.config.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		h.config.Security.RateLimitReqs,
		h.config.Security.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
