// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/metrics"
)

// Memory is the in-process Store. It backs tests, single-process sessions,
// and the server's non-durable mode.
//
// One mutex serializes every apply; fanout publish happens under that
// mutex, which is what makes the observed event order identical for all
// subscribers.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	fan    *fanout
	closed bool
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
		fan:  newFanout(),
	}
}

// Read implements Store.
func (m *Memory) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	metrics.RecordStoreRead("memory")
	return slices.Clone(v), nil
}

// Write implements Store.
func (m *Memory) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	raw, err := Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if raw == nil {
		events := m.deleteSubtreeLocked(path)
		if len(events) > 0 {
			m.fan.publish(events)
		}
		metrics.RecordStoreDelete("memory", len(events))
		return nil
	}

	cp := slices.Clone(raw)
	m.data[path] = cp
	m.fan.publish([]Event{{Path: path, Value: cp}})
	metrics.RecordStoreWrite("memory")
	return nil
}

// deleteSubtreeLocked removes path and everything under it, returning one
// deletion event per removed entry in path order. Deleting an absent
// subtree is a no-op.
func (m *Memory) deleteSubtreeLocked(path string) []Event {
	var events []Event
	for p := range m.data {
		if MatchesPrefix(p, path) {
			events = append(events, Event{Path: p})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	for _, e := range events {
		delete(m.data, e.Path)
	}
	return events
}

// Subscribe implements Store.
func (m *Memory) Subscribe(prefix string, fn func(Event)) (func(), error) {
	if prefix != "" {
		if err := ValidatePath(prefix); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	snapshot := m.snapshotLocked(prefix)
	sub, cancel := m.fan.add(prefix, fn)
	m.mu.Unlock()

	// Deliver the snapshot synchronously on the caller's goroutine, then
	// arm the drain loop. Writes racing this subscription queued behind
	// the registration and flow after the snapshot, preserving order.
	for _, e := range snapshot {
		fn(e)
	}
	sub.arm()
	return cancel, nil
}

// snapshotLocked returns the current entries under prefix in path order.
func (m *Memory) snapshotLocked(prefix string) []Event {
	var events []Event
	for p, v := range m.data {
		if MatchesPrefix(p, prefix) {
			events = append(events, Event{Path: p, Value: slices.Clone(v)})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// Len returns the number of stored paths; used by tests and the server's
// readiness probe.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Close stops all subscriptions and rejects further operations.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.fan.closeAll()
	return nil
}
