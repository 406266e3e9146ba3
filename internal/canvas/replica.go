// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/store"
)

// replica is this participant's local mirror of the session's shared
// state, maintained from the store's event stream. It is plain data; the
// engine's mutex guards every access.
//
// Malformed records (undecodable JSON, empty IDs) are dropped at the
// apply boundary with a warning, never surfaced to rendering. The store
// has no schema, so the replica is where shape enforcement lives.
type replica struct {
	session      models.Session
	participants map[string]models.Participant
	notes        map[string]models.Note
	live         map[string]models.LivePosition
	votes        map[string]map[string]models.Vote // noteID → voterID → vote
	strokes      map[string]models.Stroke
	regions      map[string]models.Region
	cursors      map[string]models.Cursor

	strokeIx *strokeIndex
}

func newReplica() *replica {
	return &replica{
		participants: make(map[string]models.Participant),
		notes:        make(map[string]models.Note),
		live:         make(map[string]models.LivePosition),
		votes:        make(map[string]map[string]models.Vote),
		strokes:      make(map[string]models.Stroke),
		regions:      make(map[string]models.Region),
		cursors:      make(map[string]models.Cursor),
		strokeIx:     newStrokeIndex(0),
	}
}

// apply routes one store event into the mirror. The lock subtree is
// deliberately not handled here; the lock manager owns its own mirror.
func (r *replica) apply(e store.Event) {
	segs := strings.SplitN(e.Path, "/", 3)
	switch segs[0] {
	case models.PathMeta:
		if e.Deleted() {
			r.session = models.Session{}
			return
		}
		var s models.Session
		if err := json.Unmarshal(e.Value, &s); err != nil {
			logging.Warn().Err(err).Str("path", e.Path).Msg("Malformed session record ignored")
			return
		}
		r.session = s
	case models.PrefixParticipants:
		applyKeyed(e, segs, r.participants, nil)
	case models.PrefixNotes:
		applyKeyed(e, segs, r.notes, nil)
	case models.PrefixLive:
		applyKeyed(e, segs, r.live, nil)
	case models.PrefixStrokes:
		applyKeyed(e, segs, r.strokes, func(id string, s models.Stroke, deleted bool) {
			if deleted {
				r.strokeIx.remove(id)
			} else {
				r.strokeIx.update(s)
			}
		})
	case models.PrefixRegions:
		applyKeyed(e, segs, r.regions, nil)
	case models.PrefixCursors:
		applyKeyed(e, segs, r.cursors, nil)
	case models.PrefixVotes:
		r.applyVote(e, segs)
	case models.PrefixLocks:
		// handled by the lock manager's own subscription
	default:
		logging.Debug().Str("path", e.Path).Msg("Unknown path prefix ignored")
	}
}

// applyKeyed decodes a <prefix>/<id> path into a map, invoking after (if
// set) with the outcome so secondary indexes stay in sync.
func applyKeyed[T any](e store.Event, segs []string, m map[string]T, after func(id string, v T, deleted bool)) {
	if len(segs) < 2 || segs[1] == "" {
		logging.Warn().Str("path", e.Path).Msg("Record path missing ID, ignored")
		return
	}
	id := segs[1]
	if e.Deleted() {
		delete(m, id)
		if after != nil {
			var zero T
			after(id, zero, true)
		}
		return
	}
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		logging.Warn().Err(err).Str("path", e.Path).Msg("Malformed record ignored")
		return
	}
	m[id] = v
	if after != nil {
		after(id, v, false)
	}
}

// applyVote handles votes/<noteID>/<voterID>.
func (r *replica) applyVote(e store.Event, segs []string) {
	if len(segs) < 3 || segs[1] == "" || segs[2] == "" {
		logging.Warn().Str("path", e.Path).Msg("Vote path malformed, ignored")
		return
	}
	noteID, voterID := segs[1], segs[2]
	if e.Deleted() {
		if byVoter := r.votes[noteID]; byVoter != nil {
			delete(byVoter, voterID)
			if len(byVoter) == 0 {
				delete(r.votes, noteID)
			}
		}
		return
	}
	var v models.Vote
	if err := json.Unmarshal(e.Value, &v); err != nil {
		logging.Warn().Err(err).Str("path", e.Path).Msg("Malformed vote ignored")
		return
	}
	byVoter := r.votes[noteID]
	if byVoter == nil {
		byVoter = make(map[string]models.Vote, 4)
		r.votes[noteID] = byVoter
	}
	byVoter[voterID] = v
}

// sortedRegions returns the regions ordered left to right. Ties on offset
// (transient, mid-repack) break on ID so the order is deterministic
// everywhere.
func (r *replica) sortedRegions() []models.Region {
	out := make([]models.Region, 0, len(r.regions))
	for _, reg := range r.regions {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OffsetX != out[j].OffsetX {
			return out[i].OffsetX < out[j].OffsetX
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// voteCount returns how many participants voted for a note.
func (r *replica) voteCount(noteID string) int {
	return len(r.votes[noteID])
}

// hasVoted reports whether a participant voted for a note.
func (r *replica) hasVoted(noteID, voterID string) bool {
	_, ok := r.votes[noteID][voterID]
	return ok
}
