// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/validation"
)

// CreateSessionRequest is the body for POST /api/v1/sessions. The caller
// becomes the session creator and gets the privileged participant.
type CreateSessionRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Name  string `json:"name" validate:"required,min=1,max=80"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// JoinSessionRequest is the body for POST /api/v1/sessions/{id}/join.
type JoinSessionRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=80"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// decodeAndValidate parses the request body into dst and validates it.
// On failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
