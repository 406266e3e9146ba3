// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package ratelimit

import (
	"sync"
	"time"
)

// FrameClock is the tick source for frame batching. Production code uses
// TickerClock; tests drive a manual clock for determinism.
type FrameClock interface {
	// Frames returns the channel delivering frame ticks.
	Frames() <-chan time.Time
	// Stop releases the clock's resources. Frames may stop delivering
	// afterwards but the channel is never closed.
	Stop()
}

// TickerClock is a FrameClock backed by time.Ticker, defaulting to roughly
// display refresh rate.
type TickerClock struct {
	ticker *time.Ticker
}

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// NewTickerClock returns a ticker-backed frame clock. A non-positive
// interval uses DefaultFrameInterval.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TickerClock{ticker: time.NewTicker(interval)}
}

// Frames implements FrameClock.
func (c *TickerClock) Frames() <-chan time.Time { return c.ticker.C }

// Stop implements FrameClock.
func (c *TickerClock) Stop() { c.ticker.Stop() }

// FrameBatch coalesces a high-frequency value stream to at most one emit
// per frame tick. Drag gestures feed it every pointer move; observers see
// one live position per frame regardless of input device rate.
type FrameBatch[T any] struct {
	mu         sync.Mutex
	emit       func(T)
	pending    T
	hasPending bool

	clock    FrameClock
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewFrameBatch starts a frame batcher draining on clock ticks. The caller
// retains ownership of the clock and must stop it separately unless it was
// created solely for this batcher.
func NewFrameBatch[T any](clock FrameClock, emit func(T)) *FrameBatch[T] {
	b := &FrameBatch[T]{
		emit:   emit,
		clock:  clock,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *FrameBatch[T]) run() {
	defer close(b.done)
	frames := b.clock.Frames()
	for {
		select {
		case <-b.stopCh:
			return
		case <-frames:
			b.flush()
		}
	}
}

func (b *FrameBatch[T]) flush() {
	b.mu.Lock()
	if !b.hasPending {
		b.mu.Unlock()
		return
	}
	v := b.pending
	var zero T
	b.pending = zero
	b.hasPending = false
	b.mu.Unlock()
	b.emit(v)
}

// Send replaces the value queued for the next frame.
func (b *FrameBatch[T]) Send(v T) {
	b.mu.Lock()
	select {
	case <-b.stopCh:
		b.mu.Unlock()
		return
	default:
	}
	b.pending = v
	b.hasPending = true
	b.mu.Unlock()
}

// Cancel drops the value queued for the next frame without emitting. A
// gesture that ends with a canonical write calls this first so no stale
// live frame lands after the cleanup delete.
func (b *FrameBatch[T]) Cancel() {
	b.mu.Lock()
	var zero T
	b.pending = zero
	b.hasPending = false
	b.mu.Unlock()
}

// Stop terminates the drain goroutine and drops any pending value. It
// waits for in-flight emission to finish, so after Stop returns no further
// emit call can be running.
func (b *FrameBatch[T]) Stop() {
	b.stopOnce.Do(func() {
		b.Cancel()
		close(b.stopCh)
	})
	<-b.done
}
