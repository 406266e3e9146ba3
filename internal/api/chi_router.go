// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noteplane/noteplane/internal/middleware"
)

// Router wires handlers and middleware into the chi route tree.
type Router struct {
	handler *Handler
	chimw   *ChiMiddleware
}

// NewRouter creates a router over the given handler and middleware
// factory.
func NewRouter(handler *Handler, chimw *ChiMiddleware) *Router {
	if chimw == nil {
		chimw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chimw: chimw}
}

// SetupChi configures all HTTP routes using the chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chimw.CORS()) // global so OPTIONS preflight is handled

	// Health endpoints get a permissive limit so monitoring can poll
	// frequently without tripping the API limiter.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chimw.RateLimitHealth())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Session bootstrap and the store protocol endpoint.
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(router.chimw.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/", router.handler.CreateSession)
		r.Get("/{id}", router.handler.GetSession)
		r.Post("/{id}/join", router.handler.JoinSession)
		r.Get("/{id}/ws", router.handler.WebSocket)
	})

	// Prometheus scrape endpoint, outside the API rate limits.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
