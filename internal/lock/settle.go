// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package lock

import (
	"sync"
	"time"

	"github.com/noteplane/noteplane/internal/metrics"
)

// DefaultSettleWindow is how long incoming position updates for a just
// released object are ignored.
const DefaultSettleWindow = 500 * time.Millisecond

// SettleGuard suppresses remote position updates for an object for a short
// window after this client releases a drag on it.
//
// Releasing a drag is two non-atomic writes (canonical position, then lock
// clear), and stale live-position frames from the rate-limited channel can
// still be in flight. Without the guard a client would apply such an echo
// and visually snap the note backward before the authoritative value
// lands. The guard is purely a display device: it changes what this client
// renders, never what is persisted.
type SettleGuard struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

// NewSettleGuard returns a guard with the given window; non-positive
// windows use DefaultSettleWindow.
func NewSettleGuard(window time.Duration) *SettleGuard {
	if window <= 0 {
		window = DefaultSettleWindow
	}
	return &SettleGuard{
		window: window,
		now:    time.Now,
		until:  make(map[string]time.Time),
	}
}

// SetClock overrides the time source for tests.
func (g *SettleGuard) SetClock(now func() time.Time) { g.now = now }

// Hold starts (or restarts) the suppression window for an object.
func (g *SettleGuard) Hold(objectID string) {
	g.mu.Lock()
	g.until[objectID] = g.now().Add(g.window)
	g.mu.Unlock()
}

// Suppressed reports whether updates for the object are still suppressed.
// Expired entries are dropped lazily on query.
func (g *SettleGuard) Suppressed(objectID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	deadline, ok := g.until[objectID]
	if !ok {
		return false
	}
	if g.now().After(deadline) {
		delete(g.until, objectID)
		return false
	}
	metrics.SettleSuppressedTotal.Inc()
	return true
}

// Clear drops the suppression window for an object, e.g. when the object
// is deleted while settling.
func (g *SettleGuard) Clear(objectID string) {
	g.mu.Lock()
	delete(g.until, objectID)
	g.mu.Unlock()
}
