// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// bootstrapServer emulates the server's create/join envelope responses.
func bootstrapServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeEnvelope := func(w http.ResponseWriter, status int, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}

	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeEnvelope(w, http.StatusCreated, map[string]any{
			"success": true,
			"data": map[string]any{
				"session": map[string]any{"id": "session-1", "title": req["title"], "phase": "active", "creator_id": "p-creator"},
				"participant": map[string]any{"id": "p-creator", "name": req["name"], "color": "#ef4444", "privileged": true},
				"socket_path": "/api/v1/sessions/session-1/ws",
				"engine": map[string]any{
					"cursor_interval_ms": 80,
					"lock_lease_ttl_ms":  8000,
					"note_width":         180,
					"seed_regions":       []string{"Keep", "Drop"},
				},
			},
		})
	})

	mux.HandleFunc("POST /api/v1/sessions/session-1/join", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"session":     map[string]any{"id": "session-1", "title": "retro", "phase": "active", "creator_id": "p-creator"},
				"participant": map[string]any{"id": "p-guest", "name": "bob", "color": "#3b82f6", "privileged": false},
				"socket_path": "/api/v1/sessions/session-1/ws",
			},
		})
	})

	mux.HandleFunc("POST /api/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   map[string]any{"code": "NOT_FOUND", "message": "session not found"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateIssuesPrivilegedIdentity(t *testing.T) {
	srv := bootstrapServer(t)
	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	id, err := client.Create(context.Background(), "retro", "alice", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id.Session.ID != "session-1" {
		t.Errorf("session id = %q", id.Session.ID)
	}
	if !id.Participant.Privileged {
		t.Error("creator should be privileged")
	}
	if id.Participant.Name != "alice" {
		t.Errorf("participant name = %q", id.Participant.Name)
	}
	wantPrefix := "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/api/v1/sessions/session-1/ws"
	if !strings.HasPrefix(id.SocketURL, wantPrefix) {
		t.Errorf("SocketURL = %q, want prefix %q", id.SocketURL, wantPrefix)
	}
	if !strings.Contains(id.SocketURL, "participant=p-creator") {
		t.Errorf("SocketURL %q lacks participant parameter", id.SocketURL)
	}
	if id.Engine.CursorIntervalMS != 80 || id.Engine.LockLeaseTTLMS != 8000 {
		t.Errorf("engine settings = %+v", id.Engine)
	}
	if id.Engine.NoteWidth != 180 || len(id.Engine.SeedRegions) != 2 {
		t.Errorf("engine settings = %+v", id.Engine)
	}
}

func TestJoinIssuesGuestIdentity(t *testing.T) {
	srv := bootstrapServer(t)
	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	id, err := client.Join(context.Background(), "session-1", "bob", "#3b82f6")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if id.Participant.Privileged {
		t.Error("joiner should not be privileged")
	}
	if !strings.Contains(id.SocketURL, "participant=p-guest") {
		t.Errorf("SocketURL %q lacks participant parameter", id.SocketURL)
	}
}

func TestJoinUnknownSession(t *testing.T) {
	srv := bootstrapServer(t)
	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Join(context.Background(), "no-such", "bob", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Join unknown session returned %v, want ErrSessionNotFound", err)
	}
}

func TestNewClientRejectsBadURLs(t *testing.T) {
	if _, err := NewClient("ftp://example.com"); err == nil {
		t.Error("ftp scheme accepted")
	}
	if _, err := NewClient("://bad"); err == nil {
		t.Error("unparseable url accepted")
	}
}

func TestSocketURLSchemeFollowsBase(t *testing.T) {
	client, err := NewClient("https://canvas.example.com")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got := client.socketURL("/api/v1/sessions/s/ws", "p-1")
	if !strings.HasPrefix(got, "wss://canvas.example.com/") {
		t.Errorf("socketURL = %q, want wss scheme", got)
	}
}
