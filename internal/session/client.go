// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package session is the client side of the bootstrap API: it turns a
// server URL plus a display name into a participant identity and the
// WebSocket URL to open the session's store protocol with. Identity is
// issued, never verified, by scope.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/models"
)

// ErrSessionNotFound indicates a join or lookup against a session ID the
// server does not know.
var ErrSessionNotFound = errors.New("session: not found")

const defaultTimeout = 15 * time.Second

// Identity is what bootstrap hands back: who the caller is in the session
// and where to connect.
type Identity struct {
	Session     models.Session
	Participant models.Participant

	// SocketURL is the absolute ws:// or wss:// URL for the session's
	// store protocol endpoint, already carrying the participant query
	// parameter.
	SocketURL string

	// Engine is the server-distributed canvas tuning block. Zero fields
	// mean the server left that knob to the client default.
	Engine EngineSettings
}

// EngineSettings mirrors the tuning block of the bootstrap payload.
// Durations are milliseconds.
type EngineSettings struct {
	CursorIntervalMS  int64 `json:"cursor_interval_ms"`
	ContentDebounceMS int64 `json:"content_debounce_ms"`
	SettleWindowMS    int64 `json:"settle_window_ms"`
	LockLeaseTTLMS    int64 `json:"lock_lease_ttl_ms"`
	CursorLivenessMS  int64 `json:"cursor_liveness_ms"`

	NoteWidth    float64 `json:"note_width"`
	NoteHeight   float64 `json:"note_height"`
	PanThreshold float64 `json:"pan_threshold"`
	EraserRadius float64 `json:"eraser_radius"`
	StrokeWidth  float64 `json:"stroke_width"`
	RegionWidth  float64 `json:"region_width"`

	ZoomMin float64 `json:"zoom_min"`
	ZoomMax float64 `json:"zoom_max"`

	SeedRegions []string `json:"seed_regions"`
}

// Client talks to a Noteplane server's bootstrap endpoints.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for the server at serverURL (scheme + host,
// e.g. "http://localhost:8473").
func NewClient(serverURL string) (*Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", serverURL)
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Create makes a new session. The caller becomes its privileged creator.
// An empty color lets the server pick one from its palette.
func (c *Client) Create(ctx context.Context, title, name, color string) (Identity, error) {
	body := map[string]string{"title": title, "name": name}
	if color != "" {
		body["color"] = color
	}
	return c.bootstrap(ctx, "/api/v1/sessions", body)
}

// Join adds the caller to an existing session as a non-privileged
// participant. Returns ErrSessionNotFound for an unknown session ID.
func (c *Client) Join(ctx context.Context, sessionID, name, color string) (Identity, error) {
	body := map[string]string{"name": name}
	if color != "" {
		body["color"] = color
	}
	return c.bootstrap(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/join", body)
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// bootstrapPayload mirrors the create/join response body.
type bootstrapPayload struct {
	Session     models.Session     `json:"session"`
	Participant models.Participant `json:"participant"`
	SocketPath  string             `json:"socket_path"`
	Engine      EngineSettings     `json:"engine"`
}

func (c *Client) bootstrap(ctx context.Context, path string, body any) (Identity, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Identity{}, fmt.Errorf("encode request: %w", err)
	}

	u := *c.base
	u.Path = path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(raw))
	if err != nil {
		return Identity{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("bootstrap request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Identity{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		if resp.StatusCode == http.StatusNotFound {
			return Identity{}, ErrSessionNotFound
		}
		if env.Error != nil {
			return Identity{}, fmt.Errorf("server rejected bootstrap: %s: %s", env.Error.Code, env.Error.Message)
		}
		return Identity{}, fmt.Errorf("server rejected bootstrap: status %d", resp.StatusCode)
	}

	var payload bootstrapPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return Identity{}, fmt.Errorf("decode bootstrap payload: %w", err)
	}

	return Identity{
		Session:     payload.Session,
		Participant: payload.Participant,
		SocketURL:   c.socketURL(payload.SocketPath, payload.Participant.ID),
		Engine:      payload.Engine,
	}, nil
}

// socketURL lifts the server-relative socket path into an absolute
// WebSocket URL against the client's base.
func (c *Client) socketURL(socketPath, participantID string) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = socketPath
	q := url.Values{}
	q.Set("participant", participantID)
	u.RawQuery = q.Encode()
	return u.String()
}
