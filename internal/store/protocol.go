// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"errors"

	"github.com/goccy/go-json"
)

// Store protocol frame types. The client sends write, read, subscribe and
// unsubscribe; the server answers with snapshot, result, change and error.
// Frames are JSON text messages over one WebSocket connection scoped to a
// session.
const (
	FrameWrite       = "write"
	FrameRead        = "read"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSnapshot    = "snapshot"
	FrameResult      = "result"
	FrameChange      = "change"
	FrameError       = "error"
)

// Protocol error codes carried by error frames.
const (
	CodeInvalidPath = "invalid_path"
	CodeNotFound    = "not_found"
	CodeBadFrame    = "bad_frame"
	CodeInternal    = "internal"
)

// Frame is the single envelope for every protocol message.
//
//   - write: Path + Value (nil Value deletes the subtree); no reply.
//   - read: ID + Path; answered by result (Entries has zero or one entry)
//     or error with CodeNotFound.
//   - subscribe: ID + Prefix; answered by snapshot (Entries in path
//     order), then change frames tagged with the same ID.
//   - unsubscribe: ID; stops change frames for that subscription.
//   - change: ID + Path + Value (empty Value is a deletion). The event
//     rides at the top level; Entries stays empty.
//
// Change frames carry the subscription ID so a connection with several
// overlapping subscriptions can route events without re-matching prefixes.
// Both ends build and read them through ChangeFrame and ChangeEvent so
// the shape cannot drift.
type Frame struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Path    string          `json:"path,omitempty"`
	Prefix  string          `json:"prefix,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Entries []Event         `json:"entries,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ChangeFrame wraps one live event for a subscription.
func ChangeFrame(id uint64, ev Event) Frame {
	return Frame{Type: FrameChange, ID: id, Path: ev.Path, Value: ev.Value}
}

// ChangeEvent recovers the event a change frame carries.
func (f Frame) ChangeEvent() Event {
	return Event{Path: f.Path, Value: f.Value}
}

// ErrorFrame builds an error reply for a request ID.
func ErrorFrame(id uint64, code, message string) Frame {
	return Frame{Type: FrameError, ID: id, Code: code, Message: message}
}

// ErrorCode maps a store error to its protocol code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPath):
		return CodeInvalidPath
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}
