// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"errors"
	"testing"

	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/store"
)

func TestSeedsDefaultRegionsIntoEmptySession(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))

	v := e.Snapshot()
	if len(v.Regions) != 3 {
		t.Fatalf("got %d regions, want 3", len(v.Regions))
	}
	var offset float32
	for _, r := range v.Regions {
		if r.OffsetX != offset {
			t.Errorf("region %s at offset %v, want %v", r.ID, r.OffsetX, offset)
		}
		if r.Width != DefaultRegionWidth {
			t.Errorf("region %s width %v, want %v", r.ID, r.Width, DefaultRegionWidth)
		}
		offset += r.Width
	}

	// A second participant joining the seeded session must not reseed.
	e2 := setupEngine(t, st, participant("bob", false), testOptions(newManualClock()))
	eventually(t, func() bool { return len(e2.Snapshot().Regions) == 3 },
		"bob never mirrored the regions")
}

// Deleting the middle region shifts both survivors left by its width and
// the total span shrinks by exactly that width.
func TestRemoveRegionRepacksSiblings(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))

	before := e.Snapshot().Regions
	removed := before[1]
	if err := e.RemoveRegion(removed.ID); err != nil {
		t.Fatalf("RemoveRegion failed: %v", err)
	}

	after := e.Snapshot().Regions
	if len(after) != 2 {
		t.Fatalf("got %d regions after delete, want 2", len(after))
	}
	if after[0].ID != before[0].ID || after[0].OffsetX != 0 {
		t.Errorf("first region = %s at %v, want %s at 0", after[0].ID, after[0].OffsetX, before[0].ID)
	}
	if after[1].ID != before[2].ID {
		t.Errorf("second region = %s, want %s", after[1].ID, before[2].ID)
	}
	if got, want := after[1].OffsetX, before[2].OffsetX-removed.Width; got != want {
		t.Errorf("shifted offset = %v, want %v", got, want)
	}
	beforeSpan := before[2].OffsetX + before[2].Width
	afterSpan := after[1].OffsetX + after[1].Width
	if beforeSpan-afterSpan != removed.Width {
		t.Errorf("span shrank by %v, want %v", beforeSpan-afterSpan, removed.Width)
	}
}

func TestRemoveLastRegionForbidden(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))

	regions := e.Snapshot().Regions
	for _, r := range regions[:len(regions)-1] {
		if err := e.RemoveRegion(r.ID); err != nil {
			t.Fatalf("RemoveRegion(%s) failed: %v", r.ID, err)
		}
	}
	last := e.Snapshot().Regions[0]
	if err := e.RemoveRegion(last.ID); !errors.Is(err, ErrLastRegion) {
		t.Errorf("removing last region: got %v, want ErrLastRegion", err)
	}
}

// A note whose region changes because of a repack gets its derived color
// rewritten by the mutating client.
func TestRepackReclassifiesNotes(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	regions := e.Snapshot().Regions

	// Note centered inside the second region.
	center := regions[1].OffsetX + regions[1].Width/2
	e.PointerDown(math32.Vec2(center, 100))
	e.PointerUp(math32.Vec2(center, 100))

	n := e.Snapshot().Notes[0]
	if n.RegionID != regions[1].ID {
		t.Fatalf("note classified into %s, want %s", n.RegionID, regions[1].ID)
	}

	// Removing the first region shifts the tiling left; the stationary
	// note now falls in the last region.
	if err := e.RemoveRegion(regions[0].ID); err != nil {
		t.Fatalf("RemoveRegion failed: %v", err)
	}
	n = e.Snapshot().Notes[0]
	if n.RegionID != regions[2].ID {
		t.Errorf("after repack note classified into %s, want %s", n.RegionID, regions[2].ID)
	}
	if n.DisplayColor != regions[2].Color {
		t.Errorf("display color %s, want %s", n.DisplayColor, regions[2].Color)
	}
	if n.Color != regions[2].Color {
		t.Errorf("persisted color %s, want %s", n.Color, regions[2].Color)
	}
}

func TestAddRegionExtendsTiling(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))

	id, err := e.AddRegion("Later", "#ddd6fe", 200)
	if err != nil {
		t.Fatalf("AddRegion failed: %v", err)
	}
	regions := e.Snapshot().Regions
	if len(regions) != 4 {
		t.Fatalf("got %d regions, want 4", len(regions))
	}
	got := regions[3]
	if got.ID != id || got.OffsetX != 3*DefaultRegionWidth || got.Width != 200 {
		t.Errorf("appended region = %+v, want id=%s offset=%v width=200", got, id, 3*DefaultRegionWidth)
	}
}

func TestResizeRegionShiftsRightNeighbors(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))

	regions := e.Snapshot().Regions
	if err := e.ResizeRegion(regions[0].ID, 500); err != nil {
		t.Fatalf("ResizeRegion failed: %v", err)
	}
	after := e.Snapshot().Regions
	if after[1].OffsetX != 500 {
		t.Errorf("second region offset = %v, want 500", after[1].OffsetX)
	}
	if after[2].OffsetX != 500+DefaultRegionWidth {
		t.Errorf("third region offset = %v, want %v", after[2].OffsetX, 500+DefaultRegionWidth)
	}
}
