// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package supervisor assembles the suture supervision tree for the server
// process. Services are grouped into three child supervisors so a crash in
// one layer restarts only its siblings:
//
//   - data: store maintenance (Badger value-log GC, the record sweeper)
//   - messaging: the WebSocket hub and, when enabled, replication
//   - api: the HTTP server
//
// Supervisor events are logged through sutureslog into the process-wide
// zerolog logger.
package supervisor
