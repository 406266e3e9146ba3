// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package store defines the path-addressed shared store contract the canvas
// engine synchronizes through, plus its reference implementations: Memory
// (in-process, used by tests and single-process sessions), Badger (server
// persistence), and Remote (WebSocket client to a store server).
//
// The contract is deliberately small:
//
//   - values are opaque JSON documents addressed by /-separated paths;
//   - a write is last-write-wins for its exact path, in arrival order at
//     the store; there is no ordering relationship between different paths;
//   - writing a nil value deletes the path and everything beneath it;
//   - a subscription delivers the current state under a prefix first, then
//     every subsequent change in store apply order.
//
// Subtree deletes are expanded to one deletion event per stored path, so
// subscribers only ever process single-path events.
package store

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
)

// Sentinel errors returned by store implementations.
var (
	// ErrNotFound indicates a read of a path with no value.
	ErrNotFound = errors.New("store: path not found")
	// ErrInvalidPath indicates a malformed path (empty, absolute, or with
	// empty segments).
	ErrInvalidPath = errors.New("store: invalid path")
	// ErrClosed indicates an operation against a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrUnavailable indicates the store cannot be reached; writes should
	// not be retried synchronously (the circuit breaker is open or the
	// link is down).
	ErrUnavailable = errors.New("store: unavailable")
)

// Event is one observed change: Value is the new document, or nil when the
// path was deleted.
type Event struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Deleted reports whether the event removes the path.
func (e Event) Deleted() bool { return len(e.Value) == 0 }

// Store is a path-addressed last-write-wins document store.
//
// Implementations must serialize writes (per-store apply order) and must
// deliver subscription callbacks for one subscription sequentially and in
// apply order. Callbacks may call back into the store, including Write.
type Store interface {
	// Read returns the document at exactly path, or ErrNotFound.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write stores the JSON encoding of value at path. A nil value deletes
	// path and its whole subtree. Write returns once the change has been
	// accepted (applied, for in-process stores; queued on the link, for
	// remote ones); the applied value is observed through subscriptions.
	Write(ctx context.Context, path string, value any) error

	// Subscribe registers fn for every change at or below prefix. The
	// current state under prefix is delivered (in path order) before
	// Subscribe returns; subsequent changes arrive on a dedicated
	// goroutine in apply order. The returned cancel is idempotent and
	// waits for any in-flight callback, so it must not be invoked from
	// the callback itself.
	Subscribe(prefix string, fn func(Event)) (cancel func(), err error)
}

// Closer is implemented by stores holding resources (Badger, Remote).
type Closer interface {
	Close() error
}

// Marshal encodes a value the way every store implementation does. It is
// exposed so protocol code and tests produce byte-identical documents.
func Marshal(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}
