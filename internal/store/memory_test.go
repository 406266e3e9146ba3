// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// collectEvents subscribes and returns a channel of observed events plus
// the cancel func.
func collectEvents(t *testing.T, s Store, prefix string) (chan Event, func()) {
	t.Helper()
	ch := make(chan Event, 256)
	cancel, err := s.Subscribe(prefix, func(e Event) { ch <- e })
	if err != nil {
		t.Fatalf("Subscribe(%q) failed: %v", prefix, err)
	}
	return ch, cancel
}

func nextEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func noEvent(t *testing.T, ch chan Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event: path=%q value=%s", e.Path, e.Value)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryReadWrite(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if _, err := m.Read(ctx, "notes/n1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read of absent path: got %v, want ErrNotFound", err)
	}

	if err := m.Write(ctx, "notes/n1", map[string]string{"content": "hello"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := m.Read(ctx, "notes/n1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got["content"] != "hello" {
		t.Errorf("Read content = %q, want %q", got["content"], "hello")
	}
}

func TestMemoryLastWriteWins(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.Write(ctx, "notes/n1", map[string]int{"rev": i}); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	raw, err := m.Read(ctx, "notes/n1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got["rev"] != 4 {
		t.Errorf("rev = %d, want 4 (last write)", got["rev"])
	}
}

func TestMemoryInvalidPaths(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	for _, path := range []string{"", "/abs", "trailing/", "a//b"} {
		if err := m.Write(ctx, path, "v"); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Write(%q): got %v, want ErrInvalidPath", path, err)
		}
		if _, err := m.Read(ctx, path); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Read(%q): got %v, want ErrInvalidPath", path, err)
		}
	}
}

func TestMemorySubtreeDelete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	mustWrite(t, m, "strokes/s1", "a")
	mustWrite(t, m, "strokes/s2", "b")
	mustWrite(t, m, "strokesextra", "c")

	ch, cancel := collectEvents(t, m, "")
	defer cancel()
	drainSnapshot(t, ch, 3)

	// nil value deletes the subtree; sibling with a shared name prefix
	// but different segment survives.
	if err := m.Write(ctx, "strokes", nil); err != nil {
		t.Fatalf("subtree delete failed: %v", err)
	}

	e1, e2 := nextEvent(t, ch), nextEvent(t, ch)
	if e1.Path != "strokes/s1" || !e1.Deleted() {
		t.Errorf("first delete event = %+v, want strokes/s1 deleted", e1)
	}
	if e2.Path != "strokes/s2" || !e2.Deleted() {
		t.Errorf("second delete event = %+v, want strokes/s2 deleted", e2)
	}
	noEvent(t, ch)

	if _, err := m.Read(ctx, "strokes/s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("strokes/s1 still present after subtree delete")
	}
	if _, err := m.Read(ctx, "strokesextra"); err != nil {
		t.Errorf("sibling path deleted by prefix match: %v", err)
	}

	// Deleting an absent subtree is a silent no-op.
	if err := m.Write(ctx, "strokes", nil); err != nil {
		t.Errorf("repeat subtree delete failed: %v", err)
	}
	noEvent(t, ch)
}

func TestMemorySnapshotThenChanges(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()

	mustWrite(t, m, "notes/b", "2")
	mustWrite(t, m, "notes/a", "1")
	mustWrite(t, m, "cursors/p1", "x")

	ch, cancel := collectEvents(t, m, "notes")
	defer cancel()

	// Snapshot arrives first, in path order, filtered to the prefix.
	e1, e2 := nextEvent(t, ch), nextEvent(t, ch)
	if e1.Path != "notes/a" || e2.Path != "notes/b" {
		t.Fatalf("snapshot order = %q, %q; want notes/a, notes/b", e1.Path, e2.Path)
	}
	noEvent(t, ch)

	mustWrite(t, m, "notes/c", "3")
	if e := nextEvent(t, ch); e.Path != "notes/c" {
		t.Errorf("change event path = %q, want notes/c", e.Path)
	}

	// Out-of-prefix writes are invisible.
	mustWrite(t, m, "cursors/p2", "y")
	noEvent(t, ch)
}

func TestMemorySubscriberPrefixBoundary(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()

	ch, cancel := collectEvents(t, m, "notes")
	defer cancel()

	mustWrite(t, m, "notesarchive/n1", "x")
	noEvent(t, ch)

	mustWrite(t, m, "notes", "root")
	if e := nextEvent(t, ch); e.Path != "notes" {
		t.Errorf("prefix root event path = %q, want notes", e.Path)
	}
}

func TestMemoryCallbackMayWrite(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	done := make(chan struct{})
	var once sync.Once
	cancel, err := m.Subscribe("notes", func(e Event) {
		if e.Path == "notes/n1" {
			// Reacting to a change by writing must not deadlock.
			if err := m.Write(ctx, "derived/n1", "seen"); err != nil {
				t.Errorf("write from callback failed: %v", err)
			}
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	mustWrite(t, m, "notes/n1", "v")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}

	waitFor(t, func() bool {
		_, err := m.Read(ctx, "derived/n1")
		return err == nil
	})
}

func TestMemoryCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()

	ch, cancel := collectEvents(t, m, "")
	cancel()
	cancel() // idempotent

	mustWrite(t, m, "notes/n1", "v")
	noEvent(t, ch)
}

func TestMemoryClose(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	mustWrite(t, m, "notes/n1", "v")
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := m.Write(ctx, "notes/n2", "v"); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close: got %v, want ErrClosed", err)
	}
	if _, err := m.Read(ctx, "notes/n1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: got %v, want ErrClosed", err)
	}
	if _, err := m.Subscribe("", func(Event) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe after Close: got %v, want ErrClosed", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestMemoryConcurrentWriters(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	ch, cancel := collectEvents(t, m, "notes")
	defer cancel()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				path := fmt.Sprintf("notes/w%d-%d", w, i)
				if err := m.Write(ctx, path, i); err != nil {
					t.Errorf("concurrent write failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < writers*perWriter; i++ {
		e := nextEvent(t, ch)
		seen[e.Path] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("observed %d distinct paths, want %d", len(seen), writers*perWriter)
	}
}

func mustWrite(t *testing.T, s Store, path string, value any) {
	t.Helper()
	if err := s.Write(context.Background(), path, value); err != nil {
		t.Fatalf("Write(%q) failed: %v", path, err)
	}
}

func drainSnapshot(t *testing.T, ch chan Event, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		nextEvent(t, ch)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
