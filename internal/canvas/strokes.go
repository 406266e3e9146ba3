// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"errors"
	"time"

	"cogentcore.org/core/math32"
	"github.com/google/uuid"

	"github.com/noteplane/noteplane/internal/geometry"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
)

// ErrNotPrivileged rejects destructive session-wide operations from
// ordinary participants.
var ErrNotPrivileged = errors.New("canvas: operation requires a privileged participant")

// SetStrokeStyle sets the color and width of subsequently drawn strokes.
func (e *Engine) SetStrokeStyle(color string, width float32) {
	e.mu.Lock()
	if color != "" {
		e.opts.StrokeColor = color
	}
	if width > 0 {
		e.opts.StrokeWidth = width
	}
	e.mu.Unlock()
}

// startStrokeLocked opens a stroke with its first point and persists it
// immediately, so peers see ink from the first sample.
func (e *Engine) startStrokeLocked(p math32.Vector2) string {
	s := models.Stroke{
		ID:        uuid.NewString(),
		AuthorID:  e.self.ID,
		Color:     e.opts.StrokeColor,
		Width:     e.opts.StrokeWidth,
		Points:    []models.Point{models.PointFromVec(p)},
		CreatedAt: time.Now(),
	}
	e.rep.strokes[s.ID] = s
	e.rep.strokeIx.update(s)
	e.write(models.StrokePath(s.ID), s)
	metrics.StrokePointsTotal.Inc()
	return s.ID
}

// extendStrokeLocked appends a point and persists the whole updated point
// list. Unlike drag positions there is no batching here: every captured
// point is written, matching the fidelity-first behavior of drawing.
// Consecutive duplicate samples are skipped.
func (e *Engine) extendStrokeLocked(strokeID string, p math32.Vector2) {
	s, ok := e.rep.strokes[strokeID]
	if !ok {
		return
	}
	pt := models.PointFromVec(p)
	if n := len(s.Points); n > 0 && s.Points[n-1] == pt {
		return
	}
	s.Points = append(s.Points, pt)
	e.rep.strokes[strokeID] = s
	e.rep.strokeIx.update(s)
	e.write(models.StrokePath(strokeID), s)
	metrics.StrokePointsTotal.Inc()
}

// eraseAtLocked deletes every stroke within reach of the eraser point.
// A stroke is hit when the minimum point-to-segment distance over its
// consecutive point pairs (vertices included, via endpoint clamping)
// falls below radius + strokeWidth/2. Erasure is all-or-nothing per
// stroke. Candidates come from the spatial index, not a full scan.
func (e *Engine) eraseAtLocked(p math32.Vector2) {
	radius := e.opts.EraserRadius
	query := math32.B2(p.X-radius, p.Y-radius, p.X+radius, p.Y+radius)
	candidates := e.rep.strokeIx.query(query)
	metrics.RecordEraseScan(len(candidates))

	for _, id := range candidates {
		s, ok := e.rep.strokes[id]
		if !ok {
			continue
		}
		if !strokeHit(s, p, radius) {
			continue
		}
		delete(e.rep.strokes, id)
		e.rep.strokeIx.remove(id)
		e.write(models.StrokePath(id), nil)
		metrics.StrokesErasedTotal.Inc()
	}
}

// strokeHit reports whether the eraser point is within threshold of the
// stroke's polyline.
func strokeHit(s models.Stroke, p math32.Vector2, radius float32) bool {
	threshold := radius + s.Width/2
	if len(s.Points) == 1 {
		return p.DistanceTo(s.Points[0].Vec()) < threshold
	}
	for i := 0; i+1 < len(s.Points); i++ {
		d := geometry.DistanceToSegment(p, s.Points[i].Vec(), s.Points[i+1].Vec())
		if d < threshold {
			return true
		}
	}
	return false
}

// EraseAt erases strokes around a canvas point outside of a pointer
// gesture, e.g. driven programmatically by the agent.
func (e *Engine) EraseAt(p math32.Vector2) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.eraseAtLocked(p)
	e.mu.Unlock()
	e.notify()
}

// ClearStrokes removes every stroke in the session with one subtree
// delete. Privileged participants only.
func (e *Engine) ClearStrokes() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.New("canvas: engine closed")
	}
	if !e.self.Privileged {
		e.mu.Unlock()
		return ErrNotPrivileged
	}
	for id := range e.rep.strokes {
		delete(e.rep.strokes, id)
		e.rep.strokeIx.remove(id)
	}
	e.mu.Unlock()

	e.write(models.PrefixStrokes, nil)
	e.notify()
	return nil
}
