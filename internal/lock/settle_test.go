// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package lock

import (
	"testing"
	"time"
)

func TestSettleGuardWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	g := NewSettleGuard(500 * time.Millisecond)
	g.SetClock(func() time.Time { return now })

	if g.Suppressed("n1") {
		t.Error("fresh guard suppresses without Hold")
	}

	g.Hold("n1")
	if !g.Suppressed("n1") {
		t.Error("not suppressed immediately after Hold")
	}
	if g.Suppressed("n2") {
		t.Error("suppression leaked to an unrelated object")
	}

	now = now.Add(499 * time.Millisecond)
	if !g.Suppressed("n1") {
		t.Error("suppression expired before the window elapsed")
	}

	now = now.Add(2 * time.Millisecond)
	if g.Suppressed("n1") {
		t.Error("suppression survived past the window")
	}
}

func TestSettleGuardHoldRestartsWindow(t *testing.T) {
	t.Parallel()

	now := time.Now()
	g := NewSettleGuard(500 * time.Millisecond)
	g.SetClock(func() time.Time { return now })

	g.Hold("n1")
	now = now.Add(400 * time.Millisecond)
	g.Hold("n1")
	now = now.Add(400 * time.Millisecond)

	if !g.Suppressed("n1") {
		t.Error("second Hold did not restart the window")
	}
}

func TestSettleGuardClear(t *testing.T) {
	t.Parallel()

	g := NewSettleGuard(time.Minute)
	g.Hold("n1")
	g.Clear("n1")
	if g.Suppressed("n1") {
		t.Error("Clear did not drop the window")
	}
}
