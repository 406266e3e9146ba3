// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package api

import (
	"net/http"
	"time"

	"github.com/noteplane/noteplane/internal/logging"
)

// HealthStatus is the payload for health probes.
type HealthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Sessions      int    `json:"sessions,omitempty"`
	Clients       int    `json:"clients,omitempty"`
}

// HealthLive handles GET /api/v1/health/live. It answers as long as the
// process serves requests; orchestrators use it to detect hangs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady handles GET /api/v1/health/ready. Readiness requires the
// store provider to answer; a failing backend flips the probe so load
// balancers stop routing here.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ids, err := h.provider.SessionIDs()
	if err != nil {
		logging.Error().Err(err).Msg("readiness probe: store provider unavailable")
		rw.ServiceUnavailable("store unavailable")
		return
	}

	rw.Success(HealthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Sessions:      len(ids),
		Clients:       h.hub.ClientCount(),
	})
}
