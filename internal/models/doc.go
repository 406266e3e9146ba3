// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

/*
Package models defines the wire-level data structures shared by the canvas
engine, the store server, and the agents.

Every record in this package is what actually lives at a store path, encoded
as JSON. The path schema (session-relative) is:

	meta                      Session
	participants/<pid>        Participant
	notes/<noteID>            Note
	live/<noteID>             LivePosition
	votes/<noteID>/<voterID>  Vote
	strokes/<strokeID>        Stroke
	regions/<regionID>        Region
	cursors/<pid>             Cursor
	locks/<kind>/<objectID>   LockState

Model Categories:

 1. Canvas objects: Note, Stroke, Region and their ephemeral companions
    (LivePosition, Vote).
 2. Presence: Participant, Cursor.
 3. Coordination: LockState (advisory, lease-stamped).
 4. Session envelope: Session.

Records carry no behavior beyond small pure helpers (staleness, lease expiry,
geometric containment). All coordinates are float32 canvas units; see the
geometry package for screen/canvas conversion.
*/
package models
