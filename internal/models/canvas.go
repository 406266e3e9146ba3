// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package models

import (
	"time"

	"cogentcore.org/core/math32"
)

// Point is a 2D position in canvas coordinates.
//
// It exists as its own type (rather than using math32.Vector2 directly) so
// the wire format stays stable and lowercase regardless of the geometry
// library in use. Convert with Vec/PointFromVec at computation boundaries.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Vec converts the point to a math32 vector for geometric computation.
func (p Point) Vec() math32.Vector2 {
	return math32.Vec2(p.X, p.Y)
}

// PointFromVec converts a math32 vector back to a wire-level point.
func PointFromVec(v math32.Vector2) Point {
	return Point{X: v.X, Y: v.Y}
}

// Note is the canonical record for a sticky note on the canvas.
//
// Key Fields:
//   - Position: top-left corner in canvas coordinates. This is the settled
//     position; during a drag the mover publishes transient positions to
//     live/<id> instead and only writes Position on release.
//   - ColumnID/Color: derived classification results. Only the participant
//     that moved the note persists these (see canvas classifier); every
//     replica recomputes the displayed values locally, so stale persisted
//     fields never mislead the display.
//   - AuthorID: participant that created the note. Informational only; any
//     participant may edit or move any note (locks are advisory).
//
// Votes for a note live under votes/<noteID>/<voterID>, one record per
// voter, and are aggregated by readers. They are not part of this struct's
// wire form.
type Note struct {
	ID        string    `json:"id"`
	Position  Point     `json:"position"`
	Content   string    `json:"content"`
	Color     string    `json:"color,omitempty"`
	ColumnID  string    `json:"column_id,omitempty"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CenterX returns the horizontal midpoint of the note for the given
// rendered width. Spatial classification keys off this value, not the
// left edge.
func (n Note) CenterX(noteWidth float32) float32 {
	return n.Position.X + noteWidth/2
}

// LivePosition is the transient position of a note mid-drag, published at
// frame rate to live/<noteID> and deleted when the drag settles.
type LivePosition struct {
	X         float32   `json:"x"`
	Y         float32   `json:"y"`
	OwnerID   string    `json:"owner_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Point returns the live position as a canvas point.
func (l LivePosition) Point() Point {
	return Point{X: l.X, Y: l.Y}
}

// Vote marks that one participant voted for one note. Stored per voter so
// concurrent toggles by different participants never clobber each other
// under per-path last-write-wins.
type Vote struct {
	VoterID string    `json:"voter_id"`
	CastAt  time.Time `json:"cast_at"`
}

// Stroke is a freehand polyline drawn on the canvas.
//
// Key Fields:
//   - Points: ordered capture points in canvas coordinates. The full list is
//     rewritten on every extension while drawing; a stroke is never patched
//     point-by-point.
//   - Width: stroke thickness in canvas units. Erasure hit-testing uses
//     radius + Width/2 as its distance threshold.
//
// Strokes are atomic for erasure: intersecting any segment removes the
// whole stroke.
type Stroke struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Color     string    `json:"color"`
	Width     float32   `json:"width"`
	Points    []Point   `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Bounds returns the axis-aligned bounding box of the stroke's points,
// expanded by half the stroke width on every side. Returns an empty box
// for a stroke with no points.
func (s Stroke) Bounds() math32.Box2 {
	b := math32.B2Empty()
	for _, p := range s.Points {
		b.ExpandByPoint(p.Vec())
	}
	if len(s.Points) > 0 {
		b.ExpandByScalar(s.Width / 2)
	}
	return b
}

// Region is a vertical categorization band. Regions tile the canvas
// horizontally from a shared base offset with no gaps or overlap; OffsetX
// is always derivable from the widths of the regions to its left and is
// re-packed after any structural change.
type Region struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	OffsetX   float32   `json:"offset_x"`
	Width     float32   `json:"width"`
	CreatedAt time.Time `json:"created_at"`
}

// Contains reports whether a horizontal coordinate falls inside the region.
// The left edge is inclusive and the right edge exclusive, so tiled regions
// partition the axis with no point belonging to two regions.
func (r Region) Contains(x float32) bool {
	return x >= r.OffsetX && x < r.OffsetX+r.Width
}
