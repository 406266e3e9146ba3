// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package main is the Noteplane headless agent: it joins (or creates) a
// session on a running server and drives the full canvas engine against
// it, synthesizing pointer traffic the way a human client would. It is
// the reference host layer for soak testing and demos.
//
//	agent -server http://localhost:8473 -name robot             # new session
//	agent -server http://localhost:8473 -session <id> -name bot # join one
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogentcore.org/core/math32"

	"github.com/noteplane/noteplane/internal/canvas"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/session"
	"github.com/noteplane/noteplane/internal/store"
)

// Virtual screen the agent "sees". Events use screen coordinates, same
// as a real pointer source.
const (
	screenW float32 = 1280
	screenH float32 = 800
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8473", "Noteplane server base URL")
		sessionID = flag.String("session", "", "session ID to join; empty creates a new session")
		title     = flag.String("title", "agent session", "title when creating a session")
		name      = flag.String("name", "agent", "participant display name")
		color     = flag.String("color", "", "participant color (hex); empty lets the server pick")
		duration  = flag.Duration("duration", 0, "how long to run; 0 runs until interrupted")
		tick      = flag.Duration("tick", 50*time.Millisecond, "pointer event interval")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: "console"})

	if err := run(*serverURL, *sessionID, *title, *name, *color, *duration, *tick); err != nil {
		logging.Error().Err(err).Msg("Agent failed")
		os.Exit(1)
	}
}

func run(serverURL, sessionID, title, name, color string, duration, tick time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Info().Msg("Interrupted, shutting down")
		cancel()
	}()

	client, err := session.NewClient(serverURL)
	if err != nil {
		return err
	}

	var id session.Identity
	if sessionID == "" {
		id, err = client.Create(ctx, title, name, color)
	} else {
		id, err = client.Join(ctx, sessionID, name, color)
	}
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logging.Info().
		Str("session_id", id.Session.ID).
		Str("participant_id", id.Participant.ID).
		Bool("privileged", id.Participant.Privileged).
		Msg("Joined session")

	remote, err := store.NewRemote(ctx, store.RemoteConfig{URL: id.SocketURL})
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer remote.Close()

	engine, err := canvas.New(remote, id.Participant, engineOptions(id.Engine))
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer engine.Close()

	w := newWanderer(engine)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logging.Info().Msg("Run duration elapsed")
				return nil
			}
			return nil
		case <-ticker.C:
			w.step()
		}
	}
}

// engineOptions maps the server-distributed tuning block onto engine
// options. Zero fields fall through to the engine defaults; seed labels
// without colors get them from the default palette by position.
func engineOptions(s session.EngineSettings) canvas.Options {
	opts := canvas.Options{
		CursorInterval:  time.Duration(s.CursorIntervalMS) * time.Millisecond,
		ContentDebounce: time.Duration(s.ContentDebounceMS) * time.Millisecond,
		SettleWindow:    time.Duration(s.SettleWindowMS) * time.Millisecond,
		LeaseTTL:        time.Duration(s.LockLeaseTTLMS) * time.Millisecond,
		CursorLiveness:  time.Duration(s.CursorLivenessMS) * time.Millisecond,
		NoteWidth:       float32(s.NoteWidth),
		NoteHeight:      float32(s.NoteHeight),
		PanThreshold:    float32(s.PanThreshold),
		EraserRadius:    float32(s.EraserRadius),
		StrokeWidth:     float32(s.StrokeWidth),
		RegionWidth:     float32(s.RegionWidth),
		ZoomMin:         float32(s.ZoomMin),
		ZoomMax:         float32(s.ZoomMax),
	}
	defaults := canvas.DefaultSeedRegions()
	for i, title := range s.SeedRegions {
		seed := canvas.RegionSeed{Title: title}
		if i < len(defaults) {
			seed.Color = defaults[i].Color
		}
		opts.SeedRegions = append(opts.SeedRegions, seed)
	}
	return opts
}

// wanderer drives the engine through randomized but human-shaped
// activity: cursor motion every tick, with occasional note creation,
// content edits, votes, drags, and strokes.
type wanderer struct {
	engine *canvas.Engine
	rng    *rand.Rand
	pos    math32.Vector2
	vel    math32.Vector2
	steps  int
}

func newWanderer(engine *canvas.Engine) *wanderer {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &wanderer{
		engine: engine,
		rng:    rng,
		pos:    math32.Vec2(screenW/2, screenH/2),
		vel:    math32.Vec2(3, 2),
	}
}

func (w *wanderer) step() {
	w.steps++
	w.drift()
	w.engine.PointerMove(w.pos)

	switch {
	case w.steps%211 == 0:
		w.drawStroke()
	case w.steps%97 == 0:
		w.createNote()
	case w.steps%131 == 0:
		w.dragNearestNote()
	case w.steps%173 == 0:
		w.voteSomewhere()
	}
}

// drift performs one random-walk move, bouncing off the screen edges.
func (w *wanderer) drift() {
	w.vel.X += (w.rng.Float32() - 0.5) * 2
	w.vel.Y += (w.rng.Float32() - 0.5) * 2
	w.vel = w.vel.MulScalar(0.9)
	w.pos = w.pos.Add(w.vel)
	if w.pos.X < 0 || w.pos.X > screenW {
		w.vel.X = -w.vel.X
		w.pos.X = math32.Clamp(w.pos.X, 0, screenW)
	}
	if w.pos.Y < 0 || w.pos.Y > screenH {
		w.vel.Y = -w.vel.Y
		w.pos.Y = math32.Clamp(w.pos.Y, 0, screenH)
	}
}

// createNote click-creates a note at the current position and types a
// line into it.
func (w *wanderer) createNote() {
	w.engine.SetTool(canvas.ToolSelect)
	w.engine.PointerDown(w.pos)
	w.engine.PointerUp(w.pos)

	view := w.engine.Snapshot()
	if len(view.Notes) == 0 {
		return
	}
	note := view.Notes[len(view.Notes)-1]
	if note.AuthorID == w.engine.Self().ID {
		w.engine.SetNoteContent(note.ID, fmt.Sprintf("agent note %d", w.steps))
	}
}

// dragNearestNote picks a random note and drags it a short way.
func (w *wanderer) dragNearestNote() {
	view := w.engine.Snapshot()
	if len(view.Notes) == 0 {
		return
	}
	note := view.Notes[w.rng.Intn(len(view.Notes))]
	if note.LockedBy != "" {
		return
	}

	start := view.Viewport.ToScreen(note.Display.Vec().Add(math32.Vec2(10, 10)))
	w.engine.SetTool(canvas.ToolSelect)
	w.engine.PointerDown(start)
	for i := 0; i < 8; i++ {
		start = start.Add(math32.Vec2(w.rng.Float32()*20-10, w.rng.Float32()*20-10))
		w.engine.PointerMove(start)
	}
	w.engine.PointerUp(start)
	w.pos = start
}

// drawStroke sketches a short squiggle with the draw tool.
func (w *wanderer) drawStroke() {
	w.engine.SetTool(canvas.ToolDraw)
	w.engine.PointerDown(w.pos)
	p := w.pos
	for i := 0; i < 12; i++ {
		p = p.Add(math32.Vec2(w.rng.Float32()*16-8, w.rng.Float32()*16-8))
		w.engine.PointerMove(p)
	}
	w.engine.PointerUp(p)
	w.engine.SetTool(canvas.ToolSelect)
	w.pos = p
}

// voteSomewhere toggles this agent's vote on a random note.
func (w *wanderer) voteSomewhere() {
	view := w.engine.Snapshot()
	if len(view.Notes) == 0 {
		return
	}
	note := view.Notes[w.rng.Intn(len(view.Notes))]
	w.engine.ToggleVote(note.ID)
}
