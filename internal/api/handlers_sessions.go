// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/store"
	ws "github.com/noteplane/noteplane/internal/websocket"
)

// EngineSettings is the canvas tuning block distributed with every
// bootstrap, so all clients of one deployment share the same feel and,
// critically, the same lock lease TTL the server sweeps against.
// Durations travel as milliseconds; a zero field means "use the client
// default".
type EngineSettings struct {
	CursorIntervalMS  int64 `json:"cursor_interval_ms,omitempty"`
	ContentDebounceMS int64 `json:"content_debounce_ms,omitempty"`
	SettleWindowMS    int64 `json:"settle_window_ms,omitempty"`
	LockLeaseTTLMS    int64 `json:"lock_lease_ttl_ms,omitempty"`
	CursorLivenessMS  int64 `json:"cursor_liveness_ms,omitempty"`

	NoteWidth    float64 `json:"note_width,omitempty"`
	NoteHeight   float64 `json:"note_height,omitempty"`
	PanThreshold float64 `json:"pan_threshold,omitempty"`
	EraserRadius float64 `json:"eraser_radius,omitempty"`
	StrokeWidth  float64 `json:"stroke_width,omitempty"`
	RegionWidth  float64 `json:"region_width,omitempty"`

	ZoomMin float64 `json:"zoom_min,omitempty"`
	ZoomMax float64 `json:"zoom_max,omitempty"`

	SeedRegions []string `json:"seed_regions,omitempty"`
}

// SessionBootstrap is the payload returned by create and join. The
// participant ID is the caller's identity for everything that follows;
// nothing verifies it later, by scope.
type SessionBootstrap struct {
	Session     models.Session     `json:"session"`
	Participant models.Participant `json:"participant"`
	SocketPath  string             `json:"socket_path"`
	Engine      EngineSettings     `json:"engine"`
}

// SessionDetail is the payload returned by GET /api/v1/sessions/{id}.
type SessionDetail struct {
	Session          models.Session `json:"session"`
	ConnectedClients int            `json:"connected_clients"`
}

// participantPalette is the default cycle of cursor/name colors handed
// to participants who do not pick one.
var participantPalette = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#ec4899",
}

// pickColor derives a stable palette color from a participant ID.
func pickColor(participantID string) string {
	var sum int
	for _, b := range []byte(participantID) {
		sum += int(b)
	}
	return participantPalette[sum%len(participantPalette)]
}

func socketPath(sessionID string) string {
	return "/api/v1/sessions/" + sessionID + "/ws"
}

// CreateSession handles POST /api/v1/sessions: it materializes a new
// session store, writes the meta record, and issues the creator's
// privileged participant identity.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sessionID := uuid.New().String()
	st, err := h.provider.Session(sessionID, true)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to create session store")
		rw.InternalError("failed to create session")
		return
	}

	now := time.Now().UTC()
	participant := models.Participant{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Color:      req.Color,
		Privileged: true,
		JoinedAt:   now,
	}
	if participant.Color == "" {
		participant.Color = pickColor(participant.ID)
	}

	session := models.Session{
		ID:        sessionID,
		Title:     req.Title,
		Phase:     models.PhaseOpen,
		CreatorID: participant.ID,
		CreatedAt: now,
	}

	ctx := r.Context()
	if err := st.Write(ctx, models.PathMeta, session); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("failed to write session meta")
		rw.InternalError("failed to create session")
		return
	}
	if err := st.Write(ctx, models.ParticipantPath(participant.ID), participant); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("failed to write creator participant")
		rw.InternalError("failed to create session")
		return
	}

	logging.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("creator_id", participant.ID).
		Msg("session created")

	rw.Created(SessionBootstrap{
		Session:     session,
		Participant: participant,
		SocketPath:  socketPath(sessionID),
		Engine:      h.config.Engine,
	})
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "id")

	session, _, err := h.loadSession(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(rw, sessionID, err)
		return
	}

	rw.Success(SessionDetail{
		Session:          session,
		ConnectedClients: h.hub.SessionClientCount(sessionID),
	})
}

// JoinSession handles POST /api/v1/sessions/{id}/join: it issues a
// fresh participant identity and records it in the session.
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sessionID := chi.URLParam(r, "id")

	var req JoinSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, st, err := h.loadSession(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(rw, sessionID, err)
		return
	}

	participant := models.Participant{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Color:    req.Color,
		JoinedAt: time.Now().UTC(),
	}
	if participant.Color == "" {
		participant.Color = pickColor(participant.ID)
	}

	ctx := r.Context()
	if err := st.Write(ctx, models.ParticipantPath(participant.ID), participant); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("session_id", sessionID).Msg("failed to write participant")
		rw.InternalError("failed to join session")
		return
	}

	logging.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("participant_id", participant.ID).
		Msg("participant joined")

	rw.Success(SessionBootstrap{
		Session:     session,
		Participant: participant,
		SocketPath:  socketPath(sessionID),
		Engine:      h.config.Engine,
	})
}

// WebSocket handles GET /api/v1/sessions/{id}/ws: it upgrades the
// connection and hands it to the hub as a store protocol client.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	_, st, err := h.loadSession(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(NewResponseWriter(w, r), sessionID, err)
		return
	}

	participantID := r.URL.Query().Get("participant")

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, st, sessionID, participantID, h.config.IngressRate, h.config.IngressBurst)
	h.hub.Register <- client
	client.Start()
}

// loadSession resolves a session ID to its meta record and store.
func (h *Handler) loadSession(ctx context.Context, sessionID string) (models.Session, store.Store, error) {
	st, err := h.provider.Session(sessionID, false)
	if err != nil {
		if errors.Is(err, store.ErrSessionUnknown) {
			return models.Session{}, nil, ErrSessionNotFound
		}
		return models.Session{}, nil, fmt.Errorf("resolving session store: %w", err)
	}

	raw, err := st.Read(ctx, models.PathMeta)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Session{}, nil, ErrSessionNotFound
		}
		return models.Session{}, nil, fmt.Errorf("%w: %s", ErrSessionCorrupt, err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, nil, fmt.Errorf("%w: %s", ErrSessionCorrupt, err)
	}
	return session, st, nil
}

func (h *Handler) writeSessionError(rw *ResponseWriter, sessionID string, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		rw.NotFound("session " + sessionID + " not found")
		return
	}
	logging.Error().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
	rw.InternalError("session lookup failed")
}
