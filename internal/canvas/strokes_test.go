// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"errors"
	"testing"

	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/store"
)

func drawStroke(e *Engine, points ...math32.Vector2) {
	e.PointerDown(points[0])
	for _, p := range points[1:] {
		e.PointerMove(p)
	}
	e.PointerUp(points[len(points)-1])
}

func TestDrawCapturesOrderedPoints(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	e.SetTool(ToolDraw)

	drawStroke(e, math32.Vec2(0, 0), math32.Vec2(10, 5), math32.Vec2(20, 10))

	v := e.Snapshot()
	if len(v.Strokes) != 1 {
		t.Fatalf("got %d strokes, want 1", len(v.Strokes))
	}
	s := v.Strokes[0]
	want := []models.Point{{X: 0, Y: 0}, {X: 10, Y: 5}, {X: 20, Y: 10}}
	if len(s.Points) != len(want) {
		t.Fatalf("got %d points, want %d", len(s.Points), len(want))
	}
	for i, p := range want {
		if s.Points[i] != p {
			t.Errorf("point %d = %+v, want %+v", i, s.Points[i], p)
		}
	}
	if s.AuthorID != "alice" {
		t.Errorf("AuthorID = %q, want alice", s.AuthorID)
	}

	// Every point triggered a persisted write: the stored record already
	// has the full list.
	raw, err := st.Read(t.Context(), models.StrokePath(s.ID))
	if err != nil {
		t.Fatalf("stroke not persisted: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty stroke record")
	}
}

func TestDuplicateSamplesSkipped(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	e.SetTool(ToolDraw)

	drawStroke(e, math32.Vec2(0, 0), math32.Vec2(0, 0), math32.Vec2(10, 0), math32.Vec2(10, 0))

	s := e.Snapshot().Strokes[0]
	if len(s.Points) != 2 {
		t.Errorf("got %d points, want 2 after duplicate suppression", len(s.Points))
	}
}

// Erasure property: the stroke is deleted iff the minimum point-to-segment
// distance is below radius + width/2.
func TestEraseDistanceThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		eraseAt   math32.Vector2
		wantErase bool
	}{
		// Horizontal stroke from (0,0) to (100,0), width 4, eraser radius
		// 12: threshold is 14.
		{"directly on the segment", math32.Vec2(50, 0), true},
		{"just inside threshold", math32.Vec2(50, 13.9), true},
		{"just outside threshold", math32.Vec2(50, 14.1), false},
		{"near an endpoint, clamped", math32.Vec2(110, 0), true},
		{"beyond endpoint reach", math32.Vec2(115, 0), false},
		// Point-to-line would match here; point-to-segment must not.
		{"on the infinite line, far past the end", math32.Vec2(200, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := store.NewMemory()
			defer st.Close()
			e := setupEngine(t, st, participant("alice", true), Options{
				StrokeWidth: 4,
				FrameClock:  newManualClock(),
			})
			e.SetTool(ToolDraw)
			drawStroke(e, math32.Vec2(0, 0), math32.Vec2(100, 0))

			e.EraseAt(tt.eraseAt)

			gone := len(e.Snapshot().Strokes) == 0
			if gone != tt.wantErase {
				t.Errorf("erased = %v, want %v", gone, tt.wantErase)
			}
		})
	}
}

func TestEraseIsAllOrNothingPerStroke(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	e.SetTool(ToolDraw)

	// One long stroke and one far-away stroke.
	drawStroke(e, math32.Vec2(0, 0), math32.Vec2(100, 0), math32.Vec2(200, 0))
	drawStroke(e, math32.Vec2(0, 1000), math32.Vec2(100, 1000))

	// Erasing near one end removes the whole first stroke, never a part.
	e.EraseAt(math32.Vec2(0, 0))

	v := e.Snapshot()
	if len(v.Strokes) != 1 {
		t.Fatalf("got %d strokes, want 1", len(v.Strokes))
	}
	if v.Strokes[0].Points[0].Y != 1000 {
		t.Error("wrong stroke erased")
	}
}

func TestEraseSinglePointStroke(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	e.SetTool(ToolDraw)

	// Pointer down and up without movement leaves a one-point stroke.
	e.PointerDown(math32.Vec2(40, 40))
	e.PointerUp(math32.Vec2(40, 40))

	e.EraseAt(math32.Vec2(45, 40))
	if len(e.Snapshot().Strokes) != 0 {
		t.Error("single-point stroke survived a direct hit")
	}
}

func TestEraseGestureSweep(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	e := setupEngine(t, st, participant("alice", true), testOptions(newManualClock()))
	e.SetTool(ToolDraw)
	drawStroke(e, math32.Vec2(0, 0), math32.Vec2(0, 100))
	drawStroke(e, math32.Vec2(300, 0), math32.Vec2(300, 100))

	e.SetTool(ToolErase)
	e.PointerDown(math32.Vec2(0, 50))
	e.PointerMove(math32.Vec2(300, 50))
	e.PointerUp(math32.Vec2(300, 50))

	if got := len(e.Snapshot().Strokes); got != 0 {
		t.Errorf("%d strokes survived the sweep, want 0", got)
	}
}

func TestClearStrokesRequiresPrivilege(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	defer st.Close()
	owner := setupEngine(t, st, participant("owner", true), testOptions(newManualClock()))
	guest := setupEngine(t, st, participant("guest", false), testOptions(newManualClock()))

	owner.SetTool(ToolDraw)
	drawStroke(owner, math32.Vec2(0, 0), math32.Vec2(50, 50))
	eventually(t, func() bool { return len(guest.Snapshot().Strokes) == 1 },
		"guest never mirrored the stroke")

	if err := guest.ClearStrokes(); !errors.Is(err, ErrNotPrivileged) {
		t.Errorf("guest ClearStrokes: got %v, want ErrNotPrivileged", err)
	}
	if err := owner.ClearStrokes(); err != nil {
		t.Fatalf("owner ClearStrokes failed: %v", err)
	}
	eventually(t, func() bool { return len(guest.Snapshot().Strokes) == 0 },
		"clear never reached the guest")
}

func TestStrokeIndexTracksExtensionsAndRemovals(t *testing.T) {
	t.Parallel()

	ix := newStrokeIndex(100)
	s := models.Stroke{ID: "s1", Width: 2, Points: []models.Point{{X: 10, Y: 10}}}
	ix.update(s)

	if got := ix.query(math32.B2(0, 0, 20, 20)); len(got) != 1 {
		t.Fatalf("query after insert: %d hits, want 1", len(got))
	}
	if got := ix.query(math32.B2(500, 500, 600, 600)); len(got) != 0 {
		t.Fatalf("distant query: %d hits, want 0", len(got))
	}

	// Extending across cells keeps it findable at the far end.
	s.Points = append(s.Points, models.Point{X: 550, Y: 550})
	ix.update(s)
	if got := ix.query(math32.B2(500, 500, 600, 600)); len(got) != 1 {
		t.Fatalf("query after extension: %d hits, want 1", len(got))
	}

	ix.remove("s1")
	if got := ix.query(math32.B2(0, 0, 600, 600)); len(got) != 0 {
		t.Fatalf("query after removal: %d hits, want 0", len(got))
	}
}
