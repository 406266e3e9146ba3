// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package replication

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestEventRoundTrip(t *testing.T) {
	in := Event{
		SessionID: "session-1",
		Path:      "notes/note-1",
		Value:     json.RawMessage(`{"content":"hello"}`),
		Origin:    "instance-a",
		At:        time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}

	data, err := in.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if out.SessionID != in.SessionID || out.Path != in.Path || out.Origin != in.Origin {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if string(out.Value) != string(in.Value) {
		t.Errorf("value = %s, want %s", out.Value, in.Value)
	}
}

func TestEventDeleteHasNoValue(t *testing.T) {
	data, err := Event{SessionID: "s", Path: "notes/n", Origin: "i"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if len(out.Value) != 0 {
		t.Errorf("delete event carries value %s", out.Value)
	}
}

func TestEventValidation(t *testing.T) {
	if _, err := (Event{Path: "p", Origin: "i"}).Encode(); err == nil {
		t.Error("event without session id encoded")
	}
	if _, err := (Event{SessionID: "s", Path: "p"}).Encode(); err == nil {
		t.Error("event without origin encoded")
	}
	if _, err := DecodeEvent([]byte(`{"path":"p"}`)); err == nil {
		t.Error("malformed event decoded")
	}
	if _, err := DecodeEvent([]byte(`not json`)); err == nil {
		t.Error("garbage decoded")
	}
}

func TestEventTopic(t *testing.T) {
	ev := Event{SessionID: "session-1"}
	if got := ev.Topic(); got != "canvas.session-1" {
		t.Errorf("Topic() = %q", got)
	}
}
