// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/models"
)

// strokeIndex is a spatial hash grid over stroke bounding boxes. The
// eraser queries it with a small box around the pointer and only runs
// segment-distance tests against strokes whose bounds intersect it,
// keeping erase cost proportional to nearby ink rather than session ink.
//
// A stroke is registered in every cell its bounding box overlaps. Long
// strokes span many cells; that is fine, cells hold IDs only.
type strokeIndex struct {
	cellSize float32
	cells    map[cellKey]map[string]struct{}
	bounds   map[string]math32.Box2 // registered bounds per stroke ID
}

// cellKey addresses one grid cell.
type cellKey struct {
	X, Y int
}

// defaultCellSize is sized to a few note widths, so a typical handwriting
// stroke touches a handful of cells.
const defaultCellSize float32 = 512

func newStrokeIndex(cellSize float32) *strokeIndex {
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}
	return &strokeIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[string]struct{}),
		bounds:   make(map[string]math32.Box2),
	}
}

// cellRange returns the inclusive cell coordinate range covered by a box.
func (ix *strokeIndex) cellRange(b math32.Box2) (x0, y0, x1, y1 int) {
	x0 = int(math32.Floor(b.Min.X / ix.cellSize))
	y0 = int(math32.Floor(b.Min.Y / ix.cellSize))
	x1 = int(math32.Floor(b.Max.X / ix.cellSize))
	y1 = int(math32.Floor(b.Max.Y / ix.cellSize))
	return
}

// update registers or re-registers a stroke. Extending a stroke moves its
// bounds, so the old registration is dropped first.
func (ix *strokeIndex) update(s models.Stroke) {
	ix.remove(s.ID)
	if len(s.Points) == 0 {
		return
	}
	b := s.Bounds()
	ix.bounds[s.ID] = b
	x0, y0, x1, y1 := ix.cellRange(b)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			key := cellKey{X: x, Y: y}
			cell := ix.cells[key]
			if cell == nil {
				cell = make(map[string]struct{}, 4)
				ix.cells[key] = cell
			}
			cell[s.ID] = struct{}{}
		}
	}
}

// remove drops a stroke's registration, if any.
func (ix *strokeIndex) remove(strokeID string) {
	b, ok := ix.bounds[strokeID]
	if !ok {
		return
	}
	delete(ix.bounds, strokeID)
	x0, y0, x1, y1 := ix.cellRange(b)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			key := cellKey{X: x, Y: y}
			if cell := ix.cells[key]; cell != nil {
				delete(cell, strokeID)
				if len(cell) == 0 {
					delete(ix.cells, key)
				}
			}
		}
	}
}

// query returns the IDs of strokes whose bounds intersect the box.
func (ix *strokeIndex) query(b math32.Box2) []string {
	seen := make(map[string]struct{})
	var out []string
	x0, y0, x1, y1 := ix.cellRange(b)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for id := range ix.cells[cellKey{X: x, Y: y}] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				if ix.bounds[id].IntersectsBox(b) {
					out = append(out, id)
				}
			}
		}
	}
	return out
}
