// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package models

// Store path schema. All paths are session-relative; the transport scopes
// them to a session, so the same schema works against an in-process store
// and a remote one.
const (
	PathMeta           = "meta"
	PrefixParticipants = "participants"
	PrefixNotes        = "notes"
	PrefixLive         = "live"
	PrefixVotes        = "votes"
	PrefixStrokes      = "strokes"
	PrefixRegions      = "regions"
	PrefixCursors      = "cursors"
	PrefixLocks        = "locks"
)

// ParticipantPath addresses one participant record.
func ParticipantPath(participantID string) string {
	return PrefixParticipants + "/" + participantID
}

// NotePath addresses one canonical note record.
func NotePath(noteID string) string {
	return PrefixNotes + "/" + noteID
}

// LivePath addresses the transient drag position for a note.
func LivePath(noteID string) string {
	return PrefixLive + "/" + noteID
}

// VotesPath addresses the vote subtree of one note (one child per voter).
func VotesPath(noteID string) string {
	return PrefixVotes + "/" + noteID
}

// VotePath addresses one participant's vote on one note.
func VotePath(noteID, voterID string) string {
	return PrefixVotes + "/" + noteID + "/" + voterID
}

// StrokePath addresses one stroke record.
func StrokePath(strokeID string) string {
	return PrefixStrokes + "/" + strokeID
}

// RegionPath addresses one region record.
func RegionPath(regionID string) string {
	return PrefixRegions + "/" + regionID
}

// CursorPath addresses one participant's live cursor.
func CursorPath(participantID string) string {
	return PrefixCursors + "/" + participantID
}

// LockPath addresses the advisory lock record for an object under a kind
// ("moving" or "editing").
func LockPath(kind, objectID string) string {
	return PrefixLocks + "/" + kind + "/" + objectID
}
