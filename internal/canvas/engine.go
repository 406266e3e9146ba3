// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package canvas

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/geometry"
	"github.com/noteplane/noteplane/internal/lock"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/ratelimit"
	"github.com/noteplane/noteplane/internal/store"
)

// Tool selects how pointer gestures on empty canvas are interpreted.
type Tool string

// Available tools.
const (
	ToolSelect Tool = "select" // pan, drag notes, click to create
	ToolDraw   Tool = "draw"   // freehand strokes
	ToolErase  Tool = "erase"  // stroke erasure
)

// Engine defaults. All of them are config-overridable through Options.
const (
	DefaultCursorInterval  = 30 * time.Millisecond
	DefaultContentDebounce = 500 * time.Millisecond
	DefaultCursorLiveness  = 6 * time.Second
	DefaultNoteWidth       float32 = 256
	DefaultNoteHeight      float32 = 180
	DefaultPanThreshold    float32 = 4
	DefaultEraserRadius    float32 = 12
	DefaultStrokeWidth     float32 = 3
	DefaultRegionWidth     float32 = 350
	DefaultNoteColor               = "#fef3c7"
	DefaultStrokeColor             = "#1f2937"
)

// RegionSeed describes one region of the default layout created when a
// session has none.
type RegionSeed struct {
	Title string
	Color string
}

// DefaultSeedRegions is the layout seeded into an empty session: three
// equal regions left to right.
func DefaultSeedRegions() []RegionSeed {
	return []RegionSeed{
		{Title: "Went well", Color: "#bbf7d0"},
		{Title: "To improve", Color: "#fecaca"},
		{Title: "Action items", Color: "#bfdbfe"},
	}
}

// Options tune one engine instance. The zero value gets production
// defaults; tests shrink the time windows.
type Options struct {
	CursorInterval  time.Duration
	ContentDebounce time.Duration
	SettleWindow    time.Duration
	LeaseTTL        time.Duration
	CursorLiveness  time.Duration

	// FrameClock drives drag-position batching. Nil starts a TickerClock
	// at DefaultFrameInterval, owned and stopped by the engine.
	FrameClock ratelimit.FrameClock

	NoteWidth    float32
	NoteHeight   float32
	PanThreshold float32
	EraserRadius float32
	StrokeWidth  float32
	StrokeColor  string

	ZoomMin float32
	ZoomMax float32

	BaseOffsetX float32
	RegionWidth float32
	SeedRegions []RegionSeed
}

func (o Options) withDefaults() Options {
	if o.CursorInterval <= 0 {
		o.CursorInterval = DefaultCursorInterval
	}
	if o.ContentDebounce <= 0 {
		o.ContentDebounce = DefaultContentDebounce
	}
	if o.SettleWindow <= 0 {
		o.SettleWindow = lock.DefaultSettleWindow
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = lock.DefaultLeaseTTL
	}
	if o.CursorLiveness <= 0 {
		o.CursorLiveness = DefaultCursorLiveness
	}
	if o.NoteWidth <= 0 {
		o.NoteWidth = DefaultNoteWidth
	}
	if o.NoteHeight <= 0 {
		o.NoteHeight = DefaultNoteHeight
	}
	if o.PanThreshold <= 0 {
		o.PanThreshold = DefaultPanThreshold
	}
	if o.EraserRadius <= 0 {
		o.EraserRadius = DefaultEraserRadius
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = DefaultStrokeWidth
	}
	if o.StrokeColor == "" {
		o.StrokeColor = DefaultStrokeColor
	}
	if o.RegionWidth <= 0 {
		o.RegionWidth = DefaultRegionWidth
	}
	if len(o.SeedRegions) == 0 {
		o.SeedRegions = DefaultSeedRegions()
	}
	return o
}

// liveUpdate is the value type flowing through the drag frame batcher.
type liveUpdate struct {
	noteID string
	pos    models.Point
}

// Engine is one participant's canvas session. See the package doc for the
// boundary model.
type Engine struct {
	st   store.Store
	self models.Participant
	opts Options

	locks  *lock.Manager
	settle *lock.SettleGuard

	mu  sync.Mutex
	vp  geometry.Viewport
	rep *replica

	tool        Tool
	gs          gestureState
	pressScreen math32.Vector2
	lastScreen  math32.Vector2
	dragID      string
	dragGrab    math32.Vector2 // canvas offset from note origin to grab point
	drawID      string
	editingID   string

	// settled pins the locally authored final position of a note for the
	// settle window after its drag releases.
	settled map[string]models.Point

	cursorTh   *ratelimit.Throttle[models.Cursor]
	dragBatch  *ratelimit.FrameBatch[liveUpdate]
	contentDeb map[string]*ratelimit.Debounce[models.Note]

	frameClock ratelimit.FrameClock
	ownClock   bool

	onChange  func()
	cancelSub func()
	closed    bool
}

// New joins the engine to a session store as self, mirrors the current
// state, and seeds the default region layout if the session has none.
func New(st store.Store, self models.Participant, opts Options) (*Engine, error) {
	opts = opts.withDefaults()

	e := &Engine{
		st:         st,
		self:       self,
		opts:       opts,
		settle:     lock.NewSettleGuard(opts.SettleWindow),
		vp:         geometry.NewViewport(opts.ZoomMin, opts.ZoomMax),
		rep:        newReplica(),
		tool:       ToolSelect,
		settled:    make(map[string]models.Point),
		contentDeb: make(map[string]*ratelimit.Debounce[models.Note]),
	}

	locks, err := lock.NewManager(st, self.ID, lock.WithLeaseTTL(opts.LeaseTTL))
	if err != nil {
		return nil, fmt.Errorf("canvas: lock manager: %w", err)
	}
	e.locks = locks

	cancel, err := st.Subscribe("", e.onStoreEvent)
	if err != nil {
		locks.Close()
		return nil, fmt.Errorf("canvas: subscribe: %w", err)
	}
	e.cancelSub = cancel

	e.frameClock = opts.FrameClock
	if e.frameClock == nil {
		e.frameClock = ratelimit.NewTickerClock(ratelimit.DefaultFrameInterval)
		e.ownClock = true
	}
	e.cursorTh = ratelimit.NewThrottle(opts.CursorInterval, e.flushCursor)
	e.dragBatch = ratelimit.NewFrameBatch(e.frameClock, e.flushLive)

	e.write(models.ParticipantPath(self.ID), self)
	e.seedRegionsIfEmpty()
	return e, nil
}

// onStoreEvent is the single ingestion point for remote state. It runs on
// the subscription's delivery goroutine; the engine mutex is what merges
// it with the gesture "event loop".
func (e *Engine) onStoreEvent(ev store.Event) {
	e.mu.Lock()
	e.rep.apply(ev)
	e.mu.Unlock()
	e.notify()
}

// OnChange registers a callback invoked (without internal locks held)
// whenever the renderable state may have changed. The host typically
// schedules a repaint.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

func (e *Engine) notify() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// write persists optimistically: failures are logged and local state is
// kept, reconverging through the subscription stream on a later success.
func (e *Engine) write(path string, value any) {
	if err := e.st.Write(context.Background(), path, value); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Store write failed, keeping local state")
	}
}

// Self returns the participant identity this engine runs as.
func (e *Engine) Self() models.Participant { return e.self }

// SetTool switches the active tool. An in-flight gesture is aborted first
// so no lock or stroke leaks across tools.
func (e *Engine) SetTool(tool Tool) {
	e.PointerLeave()
	e.mu.Lock()
	e.tool = tool
	e.mu.Unlock()
	e.notify()
}

// Tool returns the active tool.
func (e *Engine) Tool() Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

// Viewport returns the current local viewport.
func (e *Engine) Viewport() geometry.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vp
}

// SetOrigin records the screen position of the canvas element, applied to
// every subsequent pointer event.
func (e *Engine) SetOrigin(origin math32.Vector2) {
	e.mu.Lock()
	e.vp.Origin = origin
	e.mu.Unlock()
}

// Close ends the session: pending limiter flushes are cancelled (not
// emitted), an active gesture is aborted with its lock released, and the
// store subscription is dropped. The engine's own cursor record is left
// behind for the sweeper; peers hide it once it goes stale.
func (e *Engine) Close() {
	e.PointerLeave()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	debs := make([]*ratelimit.Debounce[models.Note], 0, len(e.contentDeb))
	for _, d := range e.contentDeb {
		debs = append(debs, d)
	}
	e.mu.Unlock()

	e.cursorTh.Stop()
	e.dragBatch.Stop()
	for _, d := range debs {
		d.Stop()
	}
	if e.ownClock {
		e.frameClock.Stop()
	}
	e.locks.Close()
	e.cancelSub()
}

// NoteView is one note prepared for rendering.
type NoteView struct {
	models.Note

	// Display is the position to render, after live/canonical precedence
	// and settle-guard suppression.
	Display models.Point

	// DisplayColor is the continuously reconciled category color derived
	// from the note's classified region; it overrides the persisted Color
	// field, which may lag by one reconciliation cycle.
	DisplayColor string

	// RegionID is the classified region, empty when unassigned.
	RegionID string

	Votes       int
	VotedBySelf bool

	// LockedBy names the other participant holding a moving or editing
	// lock, empty when the note is free (or held by self).
	LockedBy string
}

// View is a render-ready snapshot of the session for this participant.
type View struct {
	Session      models.Session
	Viewport     geometry.Viewport
	Tool         Tool
	Notes        []NoteView
	Strokes      []models.Stroke
	Regions      []models.Region
	Cursors      []models.Cursor
	Participants []models.Participant
}

// Snapshot builds the current view. It applies, per note:
//
//  1. settle-guard pin: the locally authored final position while the
//     post-release window is open;
//  2. live precedence: the live channel position while this client drags
//     the note or while another participant holds its move lock;
//  3. canonical position otherwise.
//
// Notes referencing unknown authors and stale cursors are filtered out
// rather than rendered half-formed.
func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	regions := e.rep.sortedRegions()

	view := View{
		Session:  e.rep.session,
		Viewport: e.vp,
		Tool:     e.tool,
		Regions:  regions,
	}

	for _, p := range e.rep.participants {
		view.Participants = append(view.Participants, p)
	}
	sort.Slice(view.Participants, func(i, j int) bool {
		return view.Participants[i].JoinedAt.Before(view.Participants[j].JoinedAt)
	})

	for id, n := range e.rep.notes {
		if _, known := e.rep.participants[n.AuthorID]; !known {
			continue
		}
		nv := NoteView{
			Note:        n,
			Display:     e.displayPositionLocked(id, n),
			Votes:       e.rep.voteCount(id),
			VotedBySelf: e.rep.hasVoted(id, e.self.ID),
		}
		if reg, ok := Classify(n.CenterX(e.opts.NoteWidth), regions); ok {
			nv.RegionID = reg.ID
			nv.DisplayColor = reg.Color
		} else {
			nv.DisplayColor = DefaultNoteColor
		}
		if owner, ok := e.locks.Owner(id, lock.KindMoving); ok && owner != e.self.ID {
			nv.LockedBy = owner
		} else if owner, ok := e.locks.Owner(id, lock.KindEditing); ok && owner != e.self.ID {
			nv.LockedBy = owner
		}
		view.Notes = append(view.Notes, nv)
	}
	sort.Slice(view.Notes, func(i, j int) bool {
		if !view.Notes[i].CreatedAt.Equal(view.Notes[j].CreatedAt) {
			return view.Notes[i].CreatedAt.Before(view.Notes[j].CreatedAt)
		}
		return view.Notes[i].ID < view.Notes[j].ID
	})

	for _, s := range e.rep.strokes {
		if len(s.Points) == 0 {
			continue
		}
		view.Strokes = append(view.Strokes, s)
	}
	sort.Slice(view.Strokes, func(i, j int) bool {
		if !view.Strokes[i].CreatedAt.Equal(view.Strokes[j].CreatedAt) {
			return view.Strokes[i].CreatedAt.Before(view.Strokes[j].CreatedAt)
		}
		return view.Strokes[i].ID < view.Strokes[j].ID
	})

	for pid, c := range e.rep.cursors {
		if pid == e.self.ID || c.Stale(e.opts.CursorLiveness, now) {
			continue
		}
		if _, known := e.rep.participants[pid]; !known {
			continue
		}
		view.Cursors = append(view.Cursors, c)
	}
	sort.Slice(view.Cursors, func(i, j int) bool {
		return view.Cursors[i].ParticipantID < view.Cursors[j].ParticipantID
	})

	return view
}

// displayPositionLocked resolves the precedence contract for one note.
func (e *Engine) displayPositionLocked(id string, n models.Note) models.Point {
	if e.settle.Suppressed(id) {
		if p, ok := e.settled[id]; ok {
			return p
		}
		return n.Position
	}
	delete(e.settled, id)

	if e.gs == gestureDragging && e.dragID == id {
		return n.Position // mirror is updated locally on every drag move
	}
	if lp, ok := e.rep.live[id]; ok {
		if owner, held := e.locks.Owner(id, lock.KindMoving); held && owner != e.self.ID {
			return lp.Point()
		}
	}
	return n.Position
}
