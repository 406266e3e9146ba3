// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"sync"

	"github.com/noteplane/noteplane/internal/metrics"
)

// subscriber owns one subscription: a prefix filter, the callback, and a
// queue drained by a dedicated goroutine so slow callbacks never block the
// store's apply path.
type subscriber struct {
	prefix string
	fn     func(Event)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	armed  bool
	closed bool

	done chan struct{}
}

func newSubscriber(prefix string, fn func(Event)) *subscriber {
	s := &subscriber{prefix: prefix, fn: fn, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push queues one event. Events pushed before arm() wait until the
// snapshot has been delivered, preserving snapshot-then-changes order.
func (s *subscriber) push(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
	s.mu.Unlock()
}

// arm releases the drain loop after the initial snapshot is delivered.
func (s *subscriber) arm() {
	s.mu.Lock()
	s.armed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// close stops delivery. A callback already running may complete; no new
// callback starts afterwards.
func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *subscriber) run() {
	defer close(s.done)
	s.mu.Lock()
	for {
		for !s.closed && (!s.armed || len(s.queue) == 0) {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			s.mu.Lock()
			stop := s.closed
			s.mu.Unlock()
			if stop {
				return
			}
			s.fn(e)
		}
		s.mu.Lock()
	}
}

// fanout routes applied events to subscribers. publish must be called while
// the owning store's apply lock is held: that lock is what gives every
// subscriber the same global event order.
type fanout struct {
	mu   sync.Mutex
	subs map[uint64]*subscriber
	next uint64
}

func newFanout() *fanout {
	return &fanout{subs: make(map[uint64]*subscriber)}
}

// add registers a subscriber and starts its drain goroutine. The caller
// arms the subscriber once the snapshot has been delivered.
func (f *fanout) add(prefix string, fn func(Event)) (*subscriber, func()) {
	s := newSubscriber(prefix, fn)
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs[id] = s
	f.mu.Unlock()

	go s.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			s.close()
		})
	}
	return s, cancel
}

// publish queues events on every subscriber whose prefix matches.
func (f *fanout) publish(events []Event) {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		for _, e := range events {
			if MatchesPrefix(e.Path, s.prefix) {
				s.push(e)
				delivered++
			}
		}
	}
	metrics.RecordStoreFanout(len(events), delivered)
}

// closeAll stops every subscriber; used by store Close.
func (f *fanout) closeAll() {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for id, s := range f.subs {
		subs = append(subs, s)
		delete(f.subs, id)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}
