// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package websocket hosts the server side of the store protocol: one
// Client per connection, speaking store.Frame messages against that
// connection's session store, and a Hub tracking every live connection
// for supervised graceful shutdown.
//
// The hub never routes data frames. Cross-connection delivery order
// comes from the session store's fanout, which every connection of a
// session shares; each subscribe frame becomes a real store
// subscription whose events are forwarded as change frames tagged with
// the subscription ID.
//
// Connections are protected two ways: pumps enforce read/write
// deadlines with ping/pong keepalive, and a per-connection token bucket
// caps inbound frame rate. Excess write frames are dropped, which is
// safe under last-write-wins: a dropped frame is a lost race. A client
// that stops draining its send queue is disconnected rather than
// allowed to stall the session.
package websocket
