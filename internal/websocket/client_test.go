// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/noteplane/noteplane/internal/store"
)

// protoServer is one protocol endpoint over a shared Memory store: every
// connection becomes a registered Client for the same session.
type protoServer struct {
	hub    *Hub
	st     *store.Memory
	server *httptest.Server
	cancel context.CancelFunc
}

func newProtoServer(t *testing.T, limit rate.Limit, burst int) *protoServer {
	t.Helper()

	hub := NewHub()
	st := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.RunWithContext(ctx) }()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		client := NewClient(hub, conn, st, "session-1", "alice", limit, burst)
		hub.Register <- client
		client.Start()
	}))

	ps := &protoServer{hub: hub, st: st, server: server, cancel: cancel}
	t.Cleanup(func() {
		server.Close()
		cancel()
		_ = st.Close()
	})
	return ps
}

func (ps *protoServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ps.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) store.Frame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var f store.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, f store.Frame) {
	t.Helper()
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// pollStore waits until check against the store succeeds.
func pollStore(t *testing.T, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSubscribeDeliversSnapshotThenChanges(t *testing.T) {
	ps := newProtoServer(t, 0, 0)
	ctx := context.Background()

	if err := ps.st.Write(ctx, "notes/a", map[string]string{"text": "first"}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	conn := ps.dial(t)
	writeFrame(t, conn, store.Frame{Type: store.FrameSubscribe, ID: 1, Prefix: "notes"})

	snap := readFrame(t, conn)
	if snap.Type != store.FrameSnapshot || snap.ID != 1 {
		t.Fatalf("expected snapshot for sub 1, got %+v", snap)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].Path != "notes/a" {
		t.Fatalf("unexpected snapshot entries: %+v", snap.Entries)
	}

	if err := ps.st.Write(ctx, "notes/b", map[string]string{"text": "second"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	change := readFrame(t, conn)
	if change.Type != store.FrameChange || change.ID != 1 {
		t.Fatalf("expected change for sub 1, got %+v", change)
	}
	if change.Path != "notes/b" || len(change.Value) == 0 {
		t.Fatalf("change frame lacks top-level path/value: %+v", change)
	}
	if ev := change.ChangeEvent(); ev.Deleted() {
		t.Fatalf("upsert decoded as deletion: %+v", ev)
	}
}

func TestWriteFrameAppliesAndDeletes(t *testing.T) {
	ps := newProtoServer(t, 0, 0)
	ctx := context.Background()

	writeFrame(t, ps.dial(t), store.Frame{
		Type:  store.FrameWrite,
		Path:  "notes/x",
		Value: json.RawMessage(`{"text":"hello"}`),
	})
	pollStore(t, func() bool {
		_, err := ps.st.Read(ctx, "notes/x")
		return err == nil
	}, "write frame never reached the store")

	// A write frame with no value deletes the subtree.
	writeFrame(t, ps.dial(t), store.Frame{Type: store.FrameWrite, Path: "notes"})
	pollStore(t, func() bool {
		_, err := ps.st.Read(ctx, "notes/x")
		return errors.Is(err, store.ErrNotFound)
	}, "delete frame never reached the store")
}

func TestReadFrameResultAndNotFound(t *testing.T) {
	ps := newProtoServer(t, 0, 0)

	if err := ps.st.Write(context.Background(), "meta", map[string]string{"title": "retro"}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	conn := ps.dial(t)
	writeFrame(t, conn, store.Frame{Type: store.FrameRead, ID: 7, Path: "meta"})
	result := readFrame(t, conn)
	if result.Type != store.FrameResult || result.ID != 7 {
		t.Fatalf("expected result for id 7, got %+v", result)
	}
	if len(result.Entries) != 1 || result.Entries[0].Path != "meta" {
		t.Fatalf("unexpected result entries: %+v", result.Entries)
	}

	writeFrame(t, conn, store.Frame{Type: store.FrameRead, ID: 8, Path: "missing"})
	errFrame := readFrame(t, conn)
	if errFrame.Type != store.FrameError || errFrame.ID != 8 {
		t.Fatalf("expected error for id 8, got %+v", errFrame)
	}
	if errFrame.Code != store.CodeNotFound {
		t.Fatalf("expected code %q, got %q", store.CodeNotFound, errFrame.Code)
	}
}

func TestUnsubscribeStopsChangeFrames(t *testing.T) {
	ps := newProtoServer(t, 0, 0)
	ctx := context.Background()

	conn := ps.dial(t)
	writeFrame(t, conn, store.Frame{Type: store.FrameSubscribe, ID: 3, Prefix: "cursors"})
	if snap := readFrame(t, conn); snap.Type != store.FrameSnapshot {
		t.Fatalf("expected snapshot, got %+v", snap)
	}

	writeFrame(t, conn, store.Frame{Type: store.FrameUnsubscribe, ID: 3})

	// Give the unsubscribe time to land, then write; no change frame
	// should follow.
	time.Sleep(50 * time.Millisecond)
	if err := ps.st.Write(ctx, "cursors/alice", map[string]float64{"x": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var f store.Frame
	if err := conn.ReadJSON(&f); err == nil {
		t.Fatalf("expected no frame after unsubscribe, got %+v", f)
	}
}

func TestUnknownFrameTypeAnswersBadFrame(t *testing.T) {
	ps := newProtoServer(t, 0, 0)

	conn := ps.dial(t)
	writeFrame(t, conn, store.Frame{Type: "bogus", ID: 9})
	errFrame := readFrame(t, conn)
	if errFrame.Type != store.FrameError || errFrame.Code != store.CodeBadFrame {
		t.Fatalf("expected bad_frame error, got %+v", errFrame)
	}
}

func TestIngressThrottleDropsExcessWrites(t *testing.T) {
	ps := newProtoServer(t, 1, 1)
	ctx := context.Background()

	conn := ps.dial(t)
	for i := 0; i < 10; i++ {
		writeFrame(t, conn, store.Frame{
			Type:  store.FrameWrite,
			Path:  "strokes/s/" + string(rune('a'+i)),
			Value: json.RawMessage(`{}`),
		})
	}

	pollStore(t, func() bool {
		_, err := ps.st.Read(ctx, "strokes/s/a")
		return err == nil
	}, "first write never landed")

	// With a one-token bucket most of the burst must have been dropped.
	time.Sleep(100 * time.Millisecond)
	applied := 0
	for i := 0; i < 10; i++ {
		if _, err := ps.st.Read(ctx, "strokes/s/"+string(rune('a'+i))); err == nil {
			applied++
		}
	}
	if applied >= 10 {
		t.Fatalf("expected throttled writes to be dropped, all %d applied", applied)
	}
}

func TestClientConstants(t *testing.T) {
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v", writeWait)
	}
	if pongWait != 60*time.Second {
		t.Errorf("pongWait = %v", pongWait)
	}
	if pingPeriod != (pongWait*9)/10 {
		t.Errorf("pingPeriod = %v", pingPeriod)
	}
	if maxMessageSize != 512*1024 {
		t.Errorf("maxMessageSize = %d", maxMessageSize)
	}
}
