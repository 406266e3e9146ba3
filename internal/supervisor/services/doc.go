// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package services adapts the server's long-running components to the
// suture.Service contract: start, block on the context, shut down
// gracefully, return ctx.Err(). Components that already follow that shape
// (the WebSocket hub) get a thin naming wrapper; the rest (HTTP server,
// Badger GC, record sweeper) get the lifecycle translation here so their
// own packages stay supervision-agnostic.
package services
