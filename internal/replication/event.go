// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package replication fans applied store writes out across server
// instances through NATS JetStream. Each instance publishes its local
// writes as `canvas.<sessionID>` and applies peer writes to its own
// session stores; the origin instance ID carried on every event breaks
// the loop.
//
// The bridge only exists in builds with the `nats` tag. The default
// build compiles the stub, which passes the provider through untouched.
package replication

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// TopicPrefix scopes all replication subjects. The stream subscribes to
// TopicPrefix + ">".
const TopicPrefix = "canvas."

// Event is the wire form of one replicated store write. A nil Value is a
// subtree delete, same as the store contract.
type Event struct {
	SessionID string          `json:"session_id"`
	Path      string          `json:"path"`
	Value     json.RawMessage `json:"value,omitempty"`
	Origin    string          `json:"origin"`
	At        time.Time       `json:"at"`
}

// Topic returns the NATS subject for the event's session.
func (e Event) Topic() string {
	return TopicPrefix + e.SessionID
}

// Encode serializes the event for publishing.
func (e Event) Encode() ([]byte, error) {
	if e.SessionID == "" {
		return nil, errors.New("replication: event without session id")
	}
	if e.Origin == "" {
		return nil, errors.New("replication: event without origin")
	}
	return json.Marshal(e)
}

// DecodeEvent parses a published event.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.SessionID == "" || e.Origin == "" {
		return Event{}, errors.New("replication: malformed event")
	}
	return e, nil
}
