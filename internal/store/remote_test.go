// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/noteplane/noteplane/internal/store"
	ws "github.com/noteplane/noteplane/internal/websocket"
)

// remoteFixture runs the real protocol stack end to end: a Memory store
// behind the hub's protocol client, served over httptest, with a Remote
// dialed against it. External test package so the websocket side can be
// imported without a cycle.
type remoteFixture struct {
	st     *store.Memory
	remote *store.Remote
}

func newRemoteFixture(t *testing.T) *remoteFixture {
	t.Helper()

	hub := ws.NewHub()
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
		client := ws.NewClient(hub, conn, st, "session-1", "agent", 0, 0)
		hub.Register <- client
		client.Start()
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	remote, err := store.NewRemote(context.Background(), store.RemoteConfig{URL: wsURL})
	if err != nil {
		t.Fatalf("dial remote: %v", err)
	}

	t.Cleanup(func() {
		_ = remote.Close()
		server.Close()
		cancel()
		_ = st.Close()
	})
	return &remoteFixture{st: st, remote: remote}
}

// eventCollector records subscription events for later inspection.
type eventCollector struct {
	mu     sync.Mutex
	events []store.Event
}

func (c *eventCollector) add(e store.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *eventCollector) snapshot() []store.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.Event(nil), c.events...)
}

// waitFor polls until an event matching the predicate has arrived.
func (c *eventCollector) waitFor(t *testing.T, match func(store.Event) bool, msg string) store.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range c.snapshot() {
			if match(e) {
				return e
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
	return store.Event{}
}

func TestRemoteSubscribeDeliversSnapshotFirst(t *testing.T) {
	fx := newRemoteFixture(t)
	ctx := context.Background()

	if err := fx.st.Write(ctx, "notes/a", map[string]string{"text": "first"}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	var col eventCollector
	cancel, err := fx.remote.Subscribe("notes", col.add)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	// Subscribe blocks until the server snapshot has been delivered, so
	// the seeded record is already visible here.
	got := col.snapshot()
	if len(got) != 1 || got[0].Path != "notes/a" || got[0].Deleted() {
		t.Fatalf("snapshot events = %+v, want one upsert for notes/a", got)
	}
}

func TestRemoteObservesPeerWrites(t *testing.T) {
	fx := newRemoteFixture(t)

	var col eventCollector
	cancel, err := fx.remote.Subscribe("notes", col.add)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	// A write through the server-side store is what any other connected
	// participant's write looks like to this client.
	if err := fx.st.Write(context.Background(), "notes/n1", map[string]string{"text": "hello"}); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	ev := col.waitFor(t, func(e store.Event) bool { return e.Path == "notes/n1" },
		"peer write never reached the remote subscriber")
	if ev.Deleted() {
		t.Fatalf("peer write arrived without its value: %+v", ev)
	}
	var note map[string]string
	if err := json.Unmarshal(ev.Value, &note); err != nil {
		t.Fatalf("decode event value: %v", err)
	}
	if note["text"] != "hello" {
		t.Errorf("event value = %+v", note)
	}
}

func TestRemoteObservesDeletes(t *testing.T) {
	fx := newRemoteFixture(t)
	ctx := context.Background()

	if err := fx.st.Write(ctx, "notes/n1", map[string]string{"text": "doomed"}); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	var col eventCollector
	cancel, err := fx.remote.Subscribe("notes", col.add)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := fx.st.Write(ctx, "notes", nil); err != nil {
		t.Fatalf("subtree delete: %v", err)
	}

	ev := col.waitFor(t, func(e store.Event) bool { return e.Path == "notes/n1" && e.Deleted() },
		"deletion never reached the remote subscriber")
	if len(ev.Value) != 0 {
		t.Errorf("deletion carried a value: %+v", ev)
	}
}

func TestRemoteReadAndWriteRoundTrip(t *testing.T) {
	fx := newRemoteFixture(t)
	ctx := context.Background()

	if err := fx.remote.Write(ctx, "meta", map[string]string{"title": "retro"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Write frames carry no reply; wait for the record to land server
	// side before reading it back over the link.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := fx.st.Read(ctx, "meta"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("remote write never reached the server store")
		}
		time.Sleep(5 * time.Millisecond)
	}

	raw, err := fx.remote.Read(ctx, "meta")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("decode read result: %v", err)
	}
	if meta["title"] != "retro" {
		t.Errorf("read back %+v", meta)
	}

	if _, err := fx.remote.Read(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Read(missing) = %v, want ErrNotFound", err)
	}
}
