// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package canvas implements the collaborative canvas engine: the gesture
// state machine, the replica of shared session state, spatial note
// classification over regions, and the freehand path engine.
//
// One Engine instance serves one participant in one session. The engine
// talks to the rest of the world through exactly three boundaries:
//
//   - a store.Store carrying all shared state (notes, strokes, regions,
//     cursors, votes, locks) under the session's path schema;
//   - plain pointer/wheel methods (PointerDown, PointerMove, PointerUp,
//     PointerLeave, Wheel) fed by whatever host UI layer embeds it;
//   - Snapshot, a render-ready view of the replica with the live/canonical
//     position precedence and settle-guard suppression already applied.
//
// All engine state is private to the instance and guarded by one mutex;
// store callbacks and gesture calls serialize through it, giving the
// single logical event loop the synchronization model assumes. Writes to
// the store are optimistic: local state updates first, failures are
// logged and the replica reconverges through the subscription stream.
package canvas
