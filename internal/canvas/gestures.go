// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"context"
	"time"

	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/geometry"
	"github.com/noteplane/noteplane/internal/lock"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
)

// gestureState is the engine's pointer mode. States are mutually
// exclusive; every transition happens under the engine mutex.
type gestureState int

const (
	gestureIdle gestureState = iota
	gesturePressed
	gesturePanning
	gestureDragging
	gestureDrawing
	gestureErasing
)

// wheelZoomRate converts wheel delta units to a zoom exponent. 500 units
// of wheel travel doubles or halves the zoom.
const wheelZoomRate float32 = 1.0 / 500

// PointerDown begins a gesture at a screen position.
//
// With the select tool, landing on a note starts a drag (unless another
// participant holds its move lock), and landing on empty canvas arms
// either a pan or a click-to-create, disambiguated by the movement
// threshold. The draw and erase tools act immediately.
func (e *Engine) PointerDown(screen math32.Vector2) {
	e.mu.Lock()
	if e.closed || e.gs != gestureIdle {
		e.mu.Unlock()
		return
	}
	e.pressScreen = screen
	e.lastScreen = screen
	canvasPt := e.vp.ToCanvas(screen)

	switch e.tool {
	case ToolDraw:
		e.gs = gestureDrawing
		e.drawID = e.startStrokeLocked(canvasPt)

	case ToolErase:
		e.gs = gestureErasing
		e.eraseAtLocked(canvasPt)

	default:
		id, ok := e.noteAtLocked(canvasPt)
		if !ok {
			e.gs = gesturePressed
			break
		}
		if e.locks.IsHeldByOther(id, lock.KindMoving) {
			// Someone else is moving it; refuse the gesture entirely.
			break
		}
		n := e.rep.notes[id]
		e.gs = gestureDragging
		e.dragID = id
		e.dragGrab = canvasPt.Sub(n.Position.Vec())
		if err := e.locks.Acquire(context.Background(), id, lock.KindMoving); err != nil {
			logging.Warn().Err(err).Str("note", id).Msg("Move lock write failed")
		}
	}
	e.mu.Unlock()
	e.notify()
}

// PointerMove advances the active gesture and always feeds the cursor
// broadcast, whatever the state.
func (e *Engine) PointerMove(screen math32.Vector2) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	canvasPt := e.vp.ToCanvas(screen)
	cursor := models.Cursor{
		ParticipantID: e.self.ID,
		Position:      models.PointFromVec(canvasPt),
		Pan:           models.PointFromVec(e.vp.Pan),
		Name:          e.self.Name,
		Color:         e.self.Color,
		UpdatedAt:     time.Now(),
	}

	switch e.gs {
	case gesturePressed:
		if !geometry.Moved(e.pressScreen, screen, e.opts.PanThreshold) {
			break
		}
		e.gs = gesturePanning
		fallthrough
	case gesturePanning:
		e.vp = e.vp.PannedBy(screen.Sub(e.lastScreen))

	case gestureDragging:
		n, ok := e.rep.notes[e.dragID]
		if !ok {
			// Deleted under us; abandon the drag.
			e.abortDragLocked()
			break
		}
		n.Position = models.PointFromVec(canvasPt.Sub(e.dragGrab))
		e.rep.notes[e.dragID] = n
		e.dragBatch.Send(liveUpdate{noteID: e.dragID, pos: n.Position})

	case gestureDrawing:
		e.extendStrokeLocked(e.drawID, canvasPt)

	case gestureErasing:
		e.eraseAtLocked(canvasPt)
	}
	e.lastScreen = screen
	e.mu.Unlock()

	e.cursorTh.Send(cursor)
	e.notify()
}

// PointerUp ends the active gesture. A press that never crossed the pan
// threshold creates a note at the press point (select tool only).
func (e *Engine) PointerUp(screen math32.Vector2) { //nolint:revive // screen kept for interface symmetry
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var created string
	switch e.gs {
	case gesturePressed:
		if e.tool == ToolSelect {
			created = e.createNoteLocked(e.vp.ToCanvas(e.pressScreen))
		}
	case gestureDragging:
		e.finishDragLocked()
	case gestureDrawing:
		e.drawID = ""
	}
	e.gs = gestureIdle
	e.mu.Unlock()

	if created != "" {
		logging.Debug().Str("note", created).Msg("Note created")
	}
	e.notify()
}

// PointerLeave aborts the active gesture: the pointer left the window, so
// no click semantics apply, but a drag still settles and its lock is
// always released.
func (e *Engine) PointerLeave() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	switch e.gs {
	case gestureDragging:
		e.finishDragLocked()
	case gestureDrawing:
		e.drawID = ""
	}
	e.gs = gestureIdle
	e.mu.Unlock()
	e.notify()
}

// Wheel handles scroll and zoom. With ctrl held the gesture zooms,
// pivoting around the pointer so the canvas point under it stays fixed;
// otherwise it pans by the scroll delta.
func (e *Engine) Wheel(delta math32.Vector2, ctrlHeld bool, screen math32.Vector2) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if ctrlHeld {
		factor := math32.Pow(2, -delta.Y*wheelZoomRate)
		e.vp = e.vp.ZoomedAt(factor, screen)
	} else {
		e.vp = e.vp.PannedBy(delta.Negate())
	}
	e.mu.Unlock()
	e.notify()
}

// finishDragLocked settles a drag: pin the final position for the settle
// window, write it canonically (with refreshed classification), retire
// the live channel, and release the move lock. The canonical write and
// the lock clear are separate non-atomic writes; the settle pin is what
// hides stale echoes in between.
func (e *Engine) finishDragLocked() {
	id := e.dragID
	e.dragID = ""
	e.dragBatch.Cancel()

	n, ok := e.rep.notes[id]
	if !ok {
		e.abortDragLocked()
		return
	}

	e.settled[id] = n.Position
	e.settle.Hold(id)

	n.UpdatedAt = time.Now()
	n = e.classifyNoteLocked(n)
	e.rep.notes[id] = n
	e.write(models.NotePath(id), n)
	e.write(models.LivePath(id), nil)

	if err := e.locks.Release(context.Background(), id, lock.KindMoving); err != nil {
		logging.Warn().Err(err).Str("note", id).Msg("Move lock release failed")
	}
}

// abortDragLocked cleans up a drag whose note vanished mid-gesture.
func (e *Engine) abortDragLocked() {
	id := e.dragID
	e.dragID = ""
	e.gs = gestureIdle
	e.dragBatch.Cancel()
	e.settle.Clear(id)
	e.write(models.LivePath(id), nil)
	if err := e.locks.Release(context.Background(), id, lock.KindMoving); err != nil {
		logging.Warn().Err(err).Str("note", id).Msg("Move lock release failed")
	}
}

// noteAtLocked hit-tests notes at a canvas point, topmost (most recently
// created) first, matching render order.
func (e *Engine) noteAtLocked(p math32.Vector2) (string, bool) {
	var (
		bestID string
		best   models.Note
		found  bool
	)
	for id, n := range e.rep.notes {
		pos := n.Position.Vec()
		if p.X < pos.X || p.X >= pos.X+e.opts.NoteWidth ||
			p.Y < pos.Y || p.Y >= pos.Y+e.opts.NoteHeight {
			continue
		}
		if !found || n.CreatedAt.After(best.CreatedAt) ||
			(n.CreatedAt.Equal(best.CreatedAt) && id > bestID) {
			bestID, best, found = id, n, true
		}
	}
	return bestID, found
}

// flushCursor delivers one throttled cursor broadcast.
func (e *Engine) flushCursor(c models.Cursor) {
	e.write(models.CursorPath(e.self.ID), c)
	metrics.RecordLimiterFlush("cursor")
}

// flushLive delivers one frame-batched live drag position and renews the
// move lease while the gesture is active.
func (e *Engine) flushLive(u liveUpdate) {
	e.write(models.LivePath(u.noteID), models.LivePosition{
		X:         u.pos.X,
		Y:         u.pos.Y,
		OwnerID:   e.self.ID,
		UpdatedAt: time.Now(),
	})
	if err := e.locks.Renew(context.Background(), u.noteID, lock.KindMoving); err != nil {
		logging.Warn().Err(err).Str("note", u.noteID).Msg("Move lease renew failed")
	}
	metrics.RecordLimiterFlush("drag")
}
