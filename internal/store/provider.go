// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"errors"
	"sync"
)

// ErrSessionUnknown indicates a request for a session the provider has
// never seen and was not asked to create.
var ErrSessionUnknown = errors.New("store: unknown session")

// Provider hands out per-session Store instances on the server. Instances
// are cached: every caller asking for the same session shares one store,
// and therefore one fanout, which is what makes cross-connection delivery
// order consistent.
type Provider interface {
	// Session returns the store for sessionID. With create false, a
	// session with no data yields ErrSessionUnknown instead of
	// materializing an empty store.
	Session(sessionID string, create bool) (Store, error)

	// SessionIDs lists sessions known to the provider.
	SessionIDs() ([]string, error)

	// Close releases every session store and underlying resources.
	Close() error
}

// MemoryProvider keeps one Memory store per session. State does not
// survive a restart; it exists for tests and ephemeral deployments.
type MemoryProvider struct {
	mu       sync.Mutex
	sessions map[string]*Memory
	closed   bool
}

// NewMemoryProvider returns an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{sessions: make(map[string]*Memory)}
}

// Session implements Provider.
func (p *MemoryProvider) Session(sessionID string, create bool) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if s, ok := p.sessions[sessionID]; ok {
		return s, nil
	}
	if !create {
		return nil, ErrSessionUnknown
	}
	s := NewMemory()
	p.sessions[sessionID] = s
	return s, nil
}

// SessionIDs implements Provider.
func (p *MemoryProvider) SessionIDs() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close implements Provider.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := make([]*Memory, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}
