// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package main

import (
	"testing"
	"time"

	"github.com/noteplane/noteplane/internal/canvas"
	"github.com/noteplane/noteplane/internal/session"
)

func TestEngineOptionsMapping(t *testing.T) {
	opts := engineOptions(session.EngineSettings{
		CursorIntervalMS:  80,
		ContentDebounceMS: 400,
		SettleWindowMS:    600,
		LockLeaseTTLMS:    8000,
		CursorLivenessMS:  5000,
		NoteWidth:         180,
		NoteHeight:        120,
		PanThreshold:      6,
		EraserRadius:      10,
		StrokeWidth:       2,
		RegionWidth:       300,
		ZoomMin:           0.5,
		ZoomMax:           2,
		SeedRegions:       []string{"Keep", "Drop"},
	})

	if opts.CursorInterval != 80*time.Millisecond {
		t.Errorf("CursorInterval = %v", opts.CursorInterval)
	}
	if opts.LeaseTTL != 8*time.Second {
		t.Errorf("LeaseTTL = %v", opts.LeaseTTL)
	}
	if opts.NoteWidth != 180 || opts.RegionWidth != 300 {
		t.Errorf("geometry = %+v", opts)
	}
	if opts.ZoomMin != 0.5 || opts.ZoomMax != 2 {
		t.Errorf("zoom bounds = %v..%v", opts.ZoomMin, opts.ZoomMax)
	}
	if len(opts.SeedRegions) != 2 || opts.SeedRegions[0].Title != "Keep" {
		t.Fatalf("seed regions = %+v", opts.SeedRegions)
	}
	if opts.SeedRegions[0].Color == "" {
		t.Error("seed region missing a palette color")
	}
}

func TestEngineOptionsZeroFallsThrough(t *testing.T) {
	opts := engineOptions(session.EngineSettings{})
	if opts.CursorInterval != 0 || opts.NoteWidth != 0 || len(opts.SeedRegions) != 0 {
		t.Errorf("zero settings must map to zero options, got %+v", opts)
	}

	// Zero options are what the engine fills with its own defaults.
	if canvas.DefaultSeedRegions()[0].Title == "" {
		t.Fatal("engine default seed regions unavailable")
	}
}
