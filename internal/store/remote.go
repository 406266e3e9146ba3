// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
)

// Remote connection tuning. Mirrors the server's pump deadlines so either
// side detects a dead peer within pongWait.
const (
	remoteWriteWait  = 10 * time.Second
	remotePongWait   = 60 * time.Second
	remotePingPeriod = (remotePongWait * 9) / 10
	remoteMaxMessage = 512 * 1024

	remoteSendBuffer      = 256
	remoteDialTimeout     = 10 * time.Second
	remoteSnapshotTimeout = 15 * time.Second
)

// RemoteConfig configures a Remote store client.
type RemoteConfig struct {
	// URL is the session WebSocket endpoint, for example
	// ws://host:8080/api/v1/sessions/<id>/ws?participant=<pid>.
	URL string
	// ReconnectMin/ReconnectMax bound the exponential redial backoff.
	// Zero values use 250ms and 10s.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Remote implements Store over the WebSocket store protocol.
//
// The client reconnects forever with exponential backoff. Subscriptions
// survive reconnects: each one is replayed against the new connection and
// the fresh server snapshot is diffed against what the subscriber has
// already seen, so the subscriber observes only ordinary events (upserts
// plus synthetic deletes for paths that vanished while the link was down).
//
// Writes are protected by a circuit breaker. While the link is down or the
// breaker is open, Write fails fast with ErrUnavailable; callers keep
// their optimistic local state and reconverge through the subscription
// stream once the link returns. Frames queued but not yet flushed when a
// connection dies are lost, which is indistinguishable from losing the
// race to a concurrent writer under last-write-wins.
type Remote struct {
	cfg     RemoteConfig
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu     sync.Mutex
	conn   *websocket.Conn
	sendCh chan Frame
	subs   map[uint64]*remoteSub
	reads  map[uint64]chan Frame
	nextID uint64
	closed bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// remoteSub tracks one live subscription and the paths it has delivered,
// which is what makes reconnect resync diffable.
type remoteSub struct {
	id     uint64
	prefix string
	fn     func(Event)

	mu       sync.Mutex
	active   bool
	known    map[string]struct{}
	snapshot chan struct{} // closed when the first snapshot lands
}

// NewRemote connects to a store server and returns once the link is up.
// The context bounds only the initial dial; afterwards the client manages
// its own reconnects until Close.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 250 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 10 * time.Second
	}

	r := &Remote{
		cfg:    cfg,
		subs:   make(map[uint64]*remoteSub),
		reads:  make(map[uint64]chan Frame),
		stopCh: make(chan struct{}),
	}
	r.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "store-remote",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Store write breaker state change")
			metrics.RecordBreakerTransition(name, from.String(), to.String(), breakerStateValue(to))
		},
	})

	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.startConn(conn)

	r.wg.Add(1)
	go r.reconnectLoop()
	return r, nil
}

// breakerStateValue maps breaker states to the gauge encoding.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func (r *Remote) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: remoteDialTimeout}
	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil) //nolint:bodyclose // gorilla owns the response body
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.cfg.URL, err)
	}
	conn.SetReadLimit(remoteMaxMessage)
	return conn, nil
}

// startConn installs a fresh connection, starts its pumps, and replays
// every registered subscription.
func (r *Remote) startConn(conn *websocket.Conn) {
	r.mu.Lock()
	r.conn = conn
	r.sendCh = make(chan Frame, remoteSendBuffer)
	subs := make([]*remoteSub, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	sendCh := r.sendCh
	r.mu.Unlock()

	connDone := make(chan struct{})
	r.wg.Add(2)
	go r.readPump(conn, connDone)
	go r.writePump(conn, sendCh, connDone)

	for _, s := range subs {
		r.enqueue(Frame{Type: FrameSubscribe, ID: s.id, Prefix: s.prefix})
	}
}

// reconnectLoop redials whenever the active connection dies.
func (r *Remote) reconnectLoop() {
	defer r.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.ReconnectMin
	bo.MaxInterval = r.cfg.ReconnectMax
	bo.MaxElapsedTime = 0 // retry until Close

	for {
		select {
		case <-r.stopCh:
			return
		case <-time.After(200 * time.Millisecond):
		}

		r.mu.Lock()
		down := r.conn == nil && !r.closed
		r.mu.Unlock()
		if !down {
			bo.Reset()
			continue
		}

		wait := bo.NextBackOff()
		logging.Warn().Dur("backoff", wait).Str("url", r.cfg.URL).Msg("Store link down, redialing")
		select {
		case <-r.stopCh:
			return
		case <-time.After(wait):
		}

		ctx, cancel := context.WithTimeout(context.Background(), remoteDialTimeout)
		conn, err := r.dial(ctx)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Msg("Store redial failed")
			continue
		}
		metrics.RecordRemoteReconnect()
		r.startConn(conn)
	}
}

// dropConn tears down the current connection state after a pump failure.
// Pending reads fail fast; subscriptions stay registered for replay.
func (r *Remote) dropConn(conn *websocket.Conn) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	reads := r.reads
	r.reads = make(map[uint64]chan Frame)
	for _, s := range r.subs {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}
	r.mu.Unlock()

	_ = conn.Close()
	for _, ch := range reads {
		close(ch)
	}
}

func (r *Remote) readPump(conn *websocket.Conn, connDone chan struct{}) {
	defer r.wg.Done()
	defer close(connDone)
	defer r.dropConn(conn)

	if err := conn.SetReadDeadline(time.Now().Add(remotePongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(remotePongWait))
	})

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			select {
			case <-r.stopCh:
			default:
				logging.Warn().Err(err).Msg("Store link read failed")
			}
			return
		}
		r.dispatch(f)
	}
}

func (r *Remote) writePump(conn *websocket.Conn, sendCh chan Frame, connDone chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(remotePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-connDone:
			return
		case <-r.stopCh:
			_ = conn.SetWriteDeadline(time.Now().Add(remoteWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		case f := <-sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(remoteWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(f); err != nil {
				logging.Warn().Err(err).Msg("Store link write failed")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(remoteWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// dispatch routes one server frame.
func (r *Remote) dispatch(f Frame) {
	switch f.Type {
	case FrameChange:
		r.mu.Lock()
		sub := r.subs[f.ID]
		r.mu.Unlock()
		if sub == nil {
			return
		}
		sub.deliver(f.ChangeEvent())

	case FrameSnapshot:
		r.mu.Lock()
		sub := r.subs[f.ID]
		r.mu.Unlock()
		if sub == nil {
			return
		}
		sub.resync(f.Entries)

	case FrameResult, FrameError:
		r.mu.Lock()
		ch := r.reads[f.ID]
		delete(r.reads, f.ID)
		r.mu.Unlock()
		if ch != nil {
			ch <- f
			close(ch)
		}

	default:
		logging.Warn().Str("type", f.Type).Msg("Store link sent unknown frame type")
	}
}

// deliver forwards one change event and maintains the known-path set.
func (s *remoteSub) deliver(e Event) {
	s.mu.Lock()
	if e.Deleted() {
		delete(s.known, e.Path)
	} else {
		s.known[e.Path] = struct{}{}
	}
	s.mu.Unlock()
	s.fn(e)
}

// resync reconciles a fresh snapshot against everything delivered so far:
// paths missing from the snapshot were deleted while the link was down and
// are surfaced as synthetic deletions, then current values are re-applied.
func (s *remoteSub) resync(entries []Event) {
	s.mu.Lock()
	current := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		current[e.Path] = struct{}{}
	}
	var gone []string
	for p := range s.known {
		if _, ok := current[p]; !ok {
			gone = append(gone, p)
		}
	}
	for _, p := range gone {
		delete(s.known, p)
	}
	for p := range current {
		s.known[p] = struct{}{}
	}
	first := !s.active
	s.active = true
	s.mu.Unlock()

	for _, p := range gone {
		s.fn(Event{Path: p})
	}
	for _, e := range entries {
		s.fn(e)
	}
	if first {
		select {
		case <-s.snapshot:
		default:
			close(s.snapshot)
		}
	}
}

// enqueue offers a frame to the current connection.
func (r *Remote) enqueue(f Frame) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	conn, ch := r.conn, r.sendCh
	r.mu.Unlock()

	if conn == nil {
		return ErrUnavailable
	}
	select {
	case ch <- f:
		return nil
	default:
		return fmt.Errorf("%w: send queue full", ErrUnavailable)
	}
}

// Write implements Store. Failures fail fast once the breaker opens.
func (r *Remote) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	raw, err := Marshal(value)
	if err != nil {
		return err
	}

	_, err = r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.enqueue(Frame{Type: FrameWrite, Path: path, Value: raw})
	})
	if err != nil {
		metrics.RecordRemoteWriteFailure()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: breaker open", ErrUnavailable)
		}
		return err
	}
	return nil
}

// Read implements Store with a correlated round-trip to the server.
func (r *Remote) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.nextID++
	id := r.nextID
	ch := make(chan Frame, 1)
	r.reads[id] = ch
	r.mu.Unlock()

	if err := r.enqueue(Frame{Type: FrameRead, ID: id, Path: path}); err != nil {
		r.mu.Lock()
		delete(r.reads, id)
		r.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.reads, id)
		r.mu.Unlock()
		return nil, ctx.Err()
	case f, ok := <-ch:
		if !ok {
			return nil, ErrUnavailable
		}
		if f.Type == FrameError {
			if f.Code == CodeNotFound {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("store: remote read %q: %s (%s)", path, f.Message, f.Code)
		}
		if len(f.Entries) == 0 {
			return nil, ErrNotFound
		}
		return f.Entries[0].Value, nil
	}
}

// Subscribe implements Store. It blocks until the server snapshot has been
// delivered through fn, so callers observe the same snapshot-first order
// as with in-process stores.
func (r *Remote) Subscribe(prefix string, fn func(Event)) (func(), error) {
	if prefix != "" {
		if err := ValidatePath(prefix); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.nextID++
	sub := &remoteSub{
		id:       r.nextID,
		prefix:   prefix,
		fn:       fn,
		known:    make(map[string]struct{}),
		snapshot: make(chan struct{}),
	}
	r.subs[sub.id] = sub
	r.mu.Unlock()

	if err := r.enqueue(Frame{Type: FrameSubscribe, ID: sub.id, Prefix: prefix}); err != nil {
		r.mu.Lock()
		delete(r.subs, sub.id)
		r.mu.Unlock()
		return nil, err
	}

	select {
	case <-sub.snapshot:
	case <-time.After(remoteSnapshotTimeout):
		r.mu.Lock()
		delete(r.subs, sub.id)
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: snapshot timeout", ErrUnavailable)
	case <-r.stopCh:
		return nil, ErrClosed
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, sub.id)
			r.mu.Unlock()
			_ = r.enqueue(Frame{Type: FrameUnsubscribe, ID: sub.id})
		})
	}
	return cancel, nil
}

// Close shuts the link down and stops the reconnect loop.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.mu.Unlock()

	close(r.stopCh)
	if conn != nil {
		_ = conn.Close()
	}
	r.wg.Wait()
	return nil
}
