// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package lock implements advisory per-object soft locks and the settle
// guard used after drag release.
//
// Locks are not distributed locks: acquisition is an unconditional
// last-write-wins store write, so two participants acting within one
// propagation window can both transiently believe they hold a lock. The
// store converges to a single owner and the loser's pre-gesture check
// stops it from mutating the object once the mismatch is observed. This
// is a deliberate trade: a cosmetic glitch instead of a consensus
// protocol.
//
// Every lock state carries a lease stamp. Holders renew it while their
// gesture is active; a state whose stamp is older than the lease TTL is
// treated as free by every reader, so a lock abandoned by a crashed or
// disconnected holder self-heals without any coordinator.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/store"
)

// Lock kinds. A note can be locked for moving and editing independently;
// the two gestures do not conflict with each other.
const (
	KindMoving  = "moving"
	KindEditing = "editing"
)

// DefaultLeaseTTL is how long a lock stays valid without renewal. Holders
// renew on every live-position flush, far more often than this.
const DefaultLeaseTTL = 10 * time.Second

// Manager owns this participant's view of the session's advisory locks.
// It mirrors the locks/ subtree through one store subscription, so
// IsHeldByOther is a local map lookup rather than a store round-trip.
type Manager struct {
	st       store.Store
	selfID   string
	leaseTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	states map[string]models.LockState // keyed by locks/<kind>/<objectID>
	cancel func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLeaseTTL overrides the lease TTL.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.leaseTTL = ttl
		}
	}
}

// WithClock overrides the time source; tests use this to expire leases
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager subscribes to the session's lock subtree and returns a
// manager bound to selfID. Close releases the subscription.
func NewManager(st store.Store, selfID string, opts ...Option) (*Manager, error) {
	m := &Manager{
		st:       st,
		selfID:   selfID,
		leaseTTL: DefaultLeaseTTL,
		now:      time.Now,
		states:   make(map[string]models.LockState),
	}
	for _, opt := range opts {
		opt(m)
	}

	cancel, err := st.Subscribe(models.PrefixLocks, m.onEvent)
	if err != nil {
		return nil, err
	}
	m.cancel = cancel
	return m, nil
}

// onEvent maintains the local mirror of the locks subtree.
func (m *Manager) onEvent(e store.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Deleted() {
		delete(m.states, e.Path)
		return
	}
	var ls models.LockState
	if err := json.Unmarshal(e.Value, &ls); err != nil {
		logging.Warn().Err(err).Str("path", e.Path).Msg("Malformed lock state ignored")
		return
	}
	m.states[e.Path] = ls
}

// Acquire writes selfID as the owner of (objectID, kind). The write is
// unconditional; callers must have checked IsHeldByOther first. The local
// mirror is updated optimistically so an immediately following check sees
// the acquisition even before the store echo arrives.
func (m *Manager) Acquire(ctx context.Context, objectID, kind string) error {
	state := models.LockState{OwnerID: m.selfID, RenewedAt: m.now()}
	path := models.LockPath(kind, objectID)

	m.mu.Lock()
	m.states[path] = state
	m.mu.Unlock()

	if err := m.st.Write(ctx, path, state); err != nil {
		return err
	}
	metrics.RecordLockAcquired(kind)
	return nil
}

// Renew refreshes the lease stamp for a lock this participant holds. A
// renew on a lock owned by someone else is skipped: it would steal the
// lock rather than extend it.
func (m *Manager) Renew(ctx context.Context, objectID, kind string) error {
	path := models.LockPath(kind, objectID)

	m.mu.Lock()
	cur, ok := m.states[path]
	if ok && cur.OwnerID != m.selfID {
		m.mu.Unlock()
		return nil
	}
	state := models.LockState{OwnerID: m.selfID, RenewedAt: m.now()}
	m.states[path] = state
	m.mu.Unlock()

	return m.st.Write(ctx, path, state)
}

// Release clears the lock. It must be called on every gesture end,
// including abnormal ones (pointer leaving the window), or the object
// stays locked until the lease expires.
func (m *Manager) Release(ctx context.Context, objectID, kind string) error {
	path := models.LockPath(kind, objectID)

	m.mu.Lock()
	delete(m.states, path)
	m.mu.Unlock()

	return m.st.Write(ctx, path, nil)
}

// ForceRelease clears a lock regardless of owner. Privileged participants
// use it to free an object whose holder is gone but whose lease has not
// yet run out.
func (m *Manager) ForceRelease(ctx context.Context, objectID, kind string) error {
	if err := m.Release(ctx, objectID, kind); err != nil {
		return err
	}
	metrics.LockForceReleasedTotal.Inc()
	return nil
}

// IsHeldByOther reports whether the lock is currently owned by a
// different participant with a live lease. Expired leases read as free.
func (m *Manager) IsHeldByOther(objectID, kind string) bool {
	m.mu.Lock()
	ls, ok := m.states[models.LockPath(kind, objectID)]
	m.mu.Unlock()
	if !ok || ls.OwnerID == "" || ls.OwnerID == m.selfID {
		return false
	}
	if ls.Expired(m.leaseTTL, m.now()) {
		metrics.LockExpiredTotal.Inc()
		return false
	}
	metrics.RecordLockContention(kind)
	return true
}

// Owner returns the current live owner of the lock, if any.
func (m *Manager) Owner(objectID, kind string) (string, bool) {
	m.mu.Lock()
	ls, ok := m.states[models.LockPath(kind, objectID)]
	m.mu.Unlock()
	if !ok || ls.OwnerID == "" || ls.Expired(m.leaseTTL, m.now()) {
		return "", false
	}
	return ls.OwnerID, true
}

// HeldBySelf reports whether this participant holds the lock per the
// local mirror.
func (m *Manager) HeldBySelf(objectID, kind string) bool {
	m.mu.Lock()
	ls, ok := m.states[models.LockPath(kind, objectID)]
	m.mu.Unlock()
	return ok && ls.OwnerID == m.selfID
}

// Close cancels the lock subscription. Held locks are not released;
// callers release them per gesture before shutting down.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
