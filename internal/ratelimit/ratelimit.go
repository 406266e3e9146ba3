// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package ratelimit provides the three outbound write-coalescing strategies
// used by the canvas engine: throttle (cursor broadcast), debounce (note
// content), and frame batching (live drag positions).
//
// All three share the same contract:
//
//   - intermediate values may be dropped, the latest value never is: after
//     input goes quiet, the last value sent is always delivered exactly once;
//   - Send never blocks and is safe from any goroutine;
//   - Stop is terminal and cancels pending delivery without emitting, so a
//     shutdown never produces writes against a closed store.
//
// Emit callbacks are invoked without any internal lock held, so a callback
// may call back into the limiter (including Send) without deadlocking.
//
// These implement trailing-edge delivery, which token buckets such as
// golang.org/x/time/rate deliberately do not (a bucket drops or delays, it
// does not replace queued values with fresher ones). The server uses token
// buckets for ingress protection; engines use these for egress shaping.
package ratelimit

import (
	"sync"
	"time"
)

// Throttle emits at most one value per interval with both leading and
// trailing edges: the first Send after an idle period emits immediately,
// later Sends within the interval coalesce and the newest value flushes
// when the interval expires.
type Throttle[T any] struct {
	mu         sync.Mutex
	interval   time.Duration
	emit       func(T)
	timer      *time.Timer
	pending    T
	hasPending bool
	stopped    bool
}

// NewThrottle returns a throttle delivering through emit at most once per
// interval.
func NewThrottle[T any](interval time.Duration, emit func(T)) *Throttle[T] {
	return &Throttle[T]{interval: interval, emit: emit}
}

// Send offers a value. The first value after quiescence is emitted
// synchronously; values arriving during the cooldown replace each other
// and the survivor is emitted when the cooldown ends.
func (t *Throttle[T]) Send(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.tick)
		t.mu.Unlock()
		t.emit(v)
		return
	}
	t.pending = v
	t.hasPending = true
	t.mu.Unlock()
}

func (t *Throttle[T]) tick() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if !t.hasPending {
		// Cooldown elapsed with nothing queued; next Send leads again.
		t.timer = nil
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending = zero
	t.hasPending = false
	t.timer.Reset(t.interval)
	t.mu.Unlock()
	t.emit(v)
}

// Stop cancels any pending trailing emit and rejects further Sends.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.hasPending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Debounce emits only after Sends have been quiet for the configured wait.
// Every Send restarts the clock, so a continuous edit stream produces no
// writes until the editor pauses.
type Debounce[T any] struct {
	mu         sync.Mutex
	wait       time.Duration
	emit       func(T)
	timer      *time.Timer
	pending    T
	hasPending bool
	stopped    bool
}

// NewDebounce returns a debouncer delivering through emit after wait of
// quiet.
func NewDebounce[T any](wait time.Duration, emit func(T)) *Debounce[T] {
	return &Debounce[T]{wait: wait, emit: emit}
}

// Send replaces the pending value and restarts the quiet timer.
func (d *Debounce[T]) Send(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	d.hasPending = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.wait, d.tick)
		return
	}
	d.timer.Reset(d.wait)
}

func (d *Debounce[T]) tick() {
	d.mu.Lock()
	if d.stopped || !d.hasPending {
		d.timer = nil
		d.mu.Unlock()
		return
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.hasPending = false
	d.timer = nil
	d.mu.Unlock()
	d.emit(v)
}

// Flush emits the pending value immediately, if any. Used when an edit
// gesture ends and the value must commit without waiting out the timer.
func (d *Debounce[T]) Flush() {
	d.mu.Lock()
	if d.stopped || !d.hasPending {
		d.mu.Unlock()
		return
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.emit(v)
}

// Cancel drops the pending value without emitting. The debouncer stays
// usable.
func (d *Debounce[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	var zero T
	d.pending = zero
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending emit and rejects further Sends.
func (d *Debounce[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	var zero T
	d.pending = zero
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
