// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	// sendQueueSize must absorb a full session snapshot plus the burst of
	// change frames a busy drag or stroke produces between write deadlines.
	sendQueueSize = 512

	// DefaultIngressRate and DefaultIngressBurst bound inbound write
	// frames per connection. A pointer device at display rate plus cursor
	// and content traffic stays well inside these.
	DefaultIngressRate  rate.Limit = 500
	DefaultIngressBurst            = 1000
)

// clientIDCounter generates unique, monotonically increasing IDs for
// clients, so the hub can order them deterministically.
var clientIDCounter atomic.Uint64

// Client bridges one WebSocket connection and one session store. Frames
// the peer sends become store operations; store events for the peer's
// subscriptions become change frames on the send queue.
type Client struct {
	id            uint64
	hub           *Hub
	conn          *websocket.Conn
	st            store.Store
	sessionID     string
	participantID string
	send          chan store.Frame
	limiter       *rate.Limiter

	mu     sync.Mutex
	subs   map[uint64]func()
	closed bool
}

// NewClient wraps an upgraded connection for sessionID. The limiter
// bounds inbound write frames; pass zero values for the defaults.
func NewClient(hub *Hub, conn *websocket.Conn, st store.Store, sessionID, participantID string, limit rate.Limit, burst int) *Client {
	if limit <= 0 {
		limit = DefaultIngressRate
	}
	if burst <= 0 {
		burst = DefaultIngressBurst
	}
	return &Client{
		id:            clientIDCounter.Add(1),
		hub:           hub,
		conn:          conn,
		st:            st,
		sessionID:     sessionID,
		participantID: participantID,
		send:          make(chan store.Frame, sendQueueSize),
		limiter:       rate.NewLimiter(limit, burst),
		subs:          make(map[uint64]func()),
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 { return c.id }

// SessionID returns the session this connection is scoped to.
func (c *Client) SessionID() string { return c.sessionID }

// Start begins reading and writing for the client.
func (c *Client) Start() {
	metrics.TrackWSConnection(true)
	go c.writePump()
	go c.readPump()
}

// readPump pumps frames from the websocket connection into the store.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.hub.unregister(c)
		_ = c.conn.Close()
		metrics.TrackWSConnection(false)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame store.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrorsTotal.Inc()
				logging.Error().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close error")
			}
			break
		}
		metrics.WSMessagesReceived.Inc()
		c.handleFrame(frame)
	}
}

// writePump pumps frames from the send queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(frame); err != nil {
				metrics.WSErrorsTotal.Inc()
				logging.Error().Err(err).Msg("failed to write frame")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one inbound protocol frame.
func (c *Client) handleFrame(f store.Frame) {
	switch f.Type {
	case store.FrameWrite:
		c.handleWrite(f)
	case store.FrameRead:
		c.handleRead(f)
	case store.FrameSubscribe:
		c.handleSubscribe(f)
	case store.FrameUnsubscribe:
		c.handleUnsubscribe(f)
	default:
		if f.ID != 0 {
			c.enqueue(store.ErrorFrame(f.ID, store.CodeBadFrame, "unknown frame type "+f.Type))
			return
		}
		logging.Debug().Str("type", f.Type).Uint64("client_id", c.id).Msg("dropping unknown frame")
	}
}

// handleWrite applies a write frame. Writes carry no reply; an over-rate
// frame is dropped outright, which under last-write-wins is just a lost
// race the next flush resolves.
func (c *Client) handleWrite(f store.Frame) {
	if !c.limiter.Allow() {
		metrics.WSIngressThrottledTotal.Inc()
		return
	}

	var value any
	if len(f.Value) > 0 {
		value = json.RawMessage(f.Value)
	}
	if err := c.st.Write(context.Background(), f.Path, value); err != nil {
		logging.Warn().Err(err).
			Str("path", f.Path).
			Str("session_id", c.sessionID).
			Msg("write frame rejected")
	}
}

func (c *Client) handleRead(f store.Frame) {
	raw, err := c.st.Read(context.Background(), f.Path)
	if err != nil {
		c.enqueue(store.ErrorFrame(f.ID, store.ErrorCode(err), err.Error()))
		return
	}
	c.enqueue(store.Frame{
		Type:    store.FrameResult,
		ID:      f.ID,
		Entries: []store.Event{{Path: f.Path, Value: raw}},
	})
}

// handleSubscribe opens a store subscription for the frame's prefix.
// The callback collects events into the snapshot until Subscribe
// returns; everything after the flip is forwarded as a change frame. A
// change racing the flip folds into the snapshot, which observers
// cannot distinguish from having subscribed a moment later.
func (c *Client) handleSubscribe(f store.Frame) {
	id := f.ID
	var (
		smu        sync.Mutex
		collecting = true
		snapshot   []store.Event
	)
	cancel, err := c.st.Subscribe(f.Prefix, func(ev store.Event) {
		smu.Lock()
		if collecting {
			snapshot = append(snapshot, ev)
			smu.Unlock()
			return
		}
		smu.Unlock()
		c.enqueue(store.ChangeFrame(id, ev))
	})
	if err != nil {
		c.enqueue(store.ErrorFrame(id, store.ErrorCode(err), err.Error()))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	old := c.subs[id]
	c.subs[id] = cancel
	c.mu.Unlock()
	if old != nil {
		// Re-subscribing with the same ID replaces the old subscription.
		old()
	}

	// The snapshot frame is enqueued before the flip, under the same
	// mutex the callback takes, so no change frame can precede it.
	smu.Lock()
	c.enqueue(store.Frame{Type: store.FrameSnapshot, ID: id, Entries: snapshot})
	collecting = false
	smu.Unlock()
}

func (c *Client) handleUnsubscribe(f store.Frame) {
	c.mu.Lock()
	cancel := c.subs[f.ID]
	delete(c.subs, f.ID)
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// enqueue places a frame on the send queue. A full queue means the peer
// has stopped draining; the connection is severed so the rest of the
// session is not held back.
func (c *Client) enqueue(f store.Frame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- f:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		metrics.WSSlowClientDisconnects.Inc()
		logging.Warn().
			Uint64("client_id", c.id).
			Str("session_id", c.sessionID).
			Msg("send queue full, disconnecting slow client")
		_ = c.conn.Close()
	}
}

// shutdown is the hub's close path: subscriptions are canceled before
// the hub closes the send channel, so no store callback can enqueue
// onto a closed channel.
func (c *Client) shutdown() {
	c.teardown()
	_ = c.conn.Close()
}

// teardown cancels every subscription and marks the client closed so no
// further frames are enqueued. Cancels run outside the client mutex:
// each one waits for an in-flight callback, and that callback may be in
// enqueue.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancels := make([]func(), 0, len(c.subs))
	for _, cancel := range c.subs {
		cancels = append(cancels, cancel)
	}
	c.subs = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
