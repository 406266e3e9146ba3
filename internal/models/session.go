// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package models

import "time"

// Session is the envelope record at meta describing one shared canvas.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Phase     string    `json:"phase"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Session phases. Phase is advisory presentation state, not an access
// control mechanism; the engine accepts writes in any phase.
const (
	PhaseOpen     = "open"
	PhaseVoting   = "voting"
	PhaseArchived = "archived"
)

// Participant is the identity issued at join time. Privileged marks the
// session creator and gates destructive operations (clear all strokes,
// force-release locks). Nothing verifies identity beyond possession of
// the ID; authentication is out of scope by design.
type Participant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	Privileged bool      `json:"privileged"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Cursor is a participant's live pointer, published at most every cursor
// throttle interval to cursors/<pid>.
//
// Position is in canvas coordinates (already unprojected through the
// sender's viewport), so receivers render it correctly regardless of
// their own pan or zoom. Pan is the sender's viewport pan, letting peers
// show where the sender is looking. Zoom is deliberately never shared.
type Cursor struct {
	ParticipantID string    `json:"participant_id"`
	Position      Point     `json:"position"`
	Pan           Point     `json:"pan"`
	Name          string    `json:"name"`
	Color         string    `json:"color"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Stale reports whether the cursor has not been refreshed within window.
// Staleness is advisory: renderers hide stale cursors, the store keeps
// them until the sweeper prunes records long past the window.
func (c Cursor) Stale(window time.Duration, now time.Time) bool {
	return now.Sub(c.UpdatedAt) > window
}

// LockState is an advisory soft lock on one object, stored at
// locks/<kind>/<objectID>.
//
// RenewedAt is the lease stamp: holders refresh it while the gesture is
// active, and a state whose stamp is older than the lease TTL is treated
// as expired by every reader. Expiry makes abandoned locks (crashed or
// disconnected holders) self-heal without a coordinator.
type LockState struct {
	OwnerID   string    `json:"owner_id"`
	RenewedAt time.Time `json:"renewed_at"`
}

// Expired reports whether the lease stamp is older than ttl.
func (l LockState) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(l.RenewedAt) > ttl
}
