// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/store"
	ws "github.com/noteplane/noteplane/internal/websocket"
)

// HandlerConfig carries the tunables the HTTP surface needs.
type HandlerConfig struct {
	// AllowedOrigins gates browser WebSocket upgrades. "*" allows any.
	AllowedOrigins []string

	// IngressRate and IngressBurst bound inbound write frames per
	// connection; zero values use the websocket package defaults.
	IngressRate  rate.Limit
	IngressBurst int

	// Engine is the canvas tuning block included in every bootstrap
	// payload. Zero fields leave clients on their own defaults.
	Engine EngineSettings
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, upgrader (this file)
//   - handlers_sessions.go: session bootstrap and the WebSocket endpoint
//   - handlers_health.go: health probes
type Handler struct {
	provider  store.Provider
	hub       *ws.Hub
	config    HandlerConfig
	startTime time.Time
}

// NewHandler creates a new API handler.
func NewHandler(provider store.Provider, hub *ws.Hub, config HandlerConfig) *Handler {
	return &Handler{
		provider:  provider,
		hub:       hub,
		config:    config,
		startTime: time.Now(),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates browser WebSocket connection origins.
// Requests without an Origin header (headless agents, curl) are allowed:
// CORS is a browser mechanism and non-browser clients never carry it.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}
