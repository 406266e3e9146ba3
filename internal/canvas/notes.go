// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"context"
	"time"

	"cogentcore.org/core/math32"
	"github.com/google/uuid"

	"github.com/noteplane/noteplane/internal/lock"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/ratelimit"
)

// createNoteLocked places a new note centered on the canvas point and
// persists it with its initial classification.
func (e *Engine) createNoteLocked(p math32.Vector2) string {
	now := time.Now()
	n := models.Note{
		ID: uuid.NewString(),
		Position: models.PointFromVec(p.Sub(
			math32.Vec2(e.opts.NoteWidth/2, e.opts.NoteHeight/2))),
		AuthorID:  e.self.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	n = e.classifyNoteLocked(n)
	e.rep.notes[n.ID] = n
	e.write(models.NotePath(n.ID), n)
	return n.ID
}

// classifyNoteLocked stamps the note's derived category from its
// classified region, or the unassigned defaults outside every region.
func (e *Engine) classifyNoteLocked(n models.Note) models.Note {
	if reg, ok := Classify(n.CenterX(e.opts.NoteWidth), e.rep.sortedRegions()); ok {
		n.ColumnID = reg.ID
		n.Color = reg.Color
	} else {
		n.ColumnID = ""
		n.Color = DefaultNoteColor
	}
	return n
}

// StartEditing requests the editing lock for a note. It returns false,
// without acquiring, when another participant already holds it; the host
// must not open an editor in that case.
func (e *Engine) StartEditing(noteID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if _, ok := e.rep.notes[noteID]; !ok {
		return false
	}
	if e.locks.IsHeldByOther(noteID, lock.KindEditing) {
		return false
	}
	if err := e.locks.Acquire(context.Background(), noteID, lock.KindEditing); err != nil {
		logging.Warn().Err(err).Str("note", noteID).Msg("Edit lock write failed")
	}
	e.editingID = noteID
	return true
}

// SetNoteContent updates a note's text. The replica reflects the change
// immediately; the store write is debounced so keystroke streams coalesce
// into one write per pause. Each note has its own debouncer, created on
// first edit and renewing the edit lease on every flush.
func (e *Engine) SetNoteContent(noteID, content string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	n, ok := e.rep.notes[noteID]
	if !ok {
		e.mu.Unlock()
		return
	}
	n.Content = content
	n.UpdatedAt = time.Now()
	e.rep.notes[noteID] = n

	deb := e.contentDeb[noteID]
	if deb == nil {
		deb = ratelimit.NewDebounce(e.opts.ContentDebounce, func(latest models.Note) {
			e.write(models.NotePath(latest.ID), latest)
			if err := e.locks.Renew(context.Background(), latest.ID, lock.KindEditing); err != nil {
				logging.Warn().Err(err).Str("note", latest.ID).Msg("Edit lease renew failed")
			}
			metrics.RecordLimiterFlush("content")
		})
		e.contentDeb[noteID] = deb
	}
	e.mu.Unlock()

	deb.Send(n)
	e.notify()
}

// EndEditing commits any pending content write immediately and releases
// the editing lock. Must be called on every editor close, including
// abnormal ones.
func (e *Engine) EndEditing(noteID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	deb := e.contentDeb[noteID]
	if e.editingID == noteID {
		e.editingID = ""
	}
	e.mu.Unlock()

	if deb != nil {
		deb.Flush()
	}
	if err := e.locks.Release(context.Background(), noteID, lock.KindEditing); err != nil {
		logging.Warn().Err(err).Str("note", noteID).Msg("Edit lock release failed")
	}
	e.notify()
}

// DeleteNote removes a note with its vote subtree and live channel. Any
// participant may delete any note; locks gate only moves and edits.
func (e *Engine) DeleteNote(noteID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.rep.notes, noteID)
	delete(e.rep.votes, noteID)
	delete(e.rep.live, noteID)
	delete(e.settled, noteID)
	e.settle.Clear(noteID)
	if deb := e.contentDeb[noteID]; deb != nil {
		deb.Stop()
		delete(e.contentDeb, noteID)
	}
	e.mu.Unlock()

	e.write(models.NotePath(noteID), nil)
	e.write(models.VotesPath(noteID), nil)
	e.write(models.LivePath(noteID), nil)
	e.notify()
}

// ToggleVote casts or retracts this participant's vote on a note. Each
// vote is its own store path, so concurrent toggles by different voters
// never collide.
func (e *Engine) ToggleVote(noteID string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if _, ok := e.rep.notes[noteID]; !ok {
		e.mu.Unlock()
		return
	}
	voted := e.rep.hasVoted(noteID, e.self.ID)
	var vote models.Vote
	if !voted {
		vote = models.Vote{VoterID: e.self.ID, CastAt: time.Now()}
		byVoter := e.rep.votes[noteID]
		if byVoter == nil {
			byVoter = make(map[string]models.Vote, 4)
			e.rep.votes[noteID] = byVoter
		}
		byVoter[e.self.ID] = vote
	} else if byVoter := e.rep.votes[noteID]; byVoter != nil {
		delete(byVoter, e.self.ID)
	}
	e.mu.Unlock()

	if voted {
		e.write(models.VotePath(noteID, e.self.ID), nil)
	} else {
		e.write(models.VotePath(noteID, e.self.ID), vote)
	}
	e.notify()
}
