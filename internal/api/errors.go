// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package api provides the HTTP surface of the canvas server: session
// bootstrap, the per-session WebSocket endpoint, and health probes,
// routed with chi.
package api

import "errors"

// Common API errors.
var (
	// ErrSessionNotFound indicates a request for a session the store has
	// never seen.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCorrupt indicates a session whose meta record is missing
	// or unreadable.
	ErrSessionCorrupt = errors.New("session meta record unreadable")
)
