// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package services

import (
	"context"
)

// ContextHub matches *websocket.Hub without importing the package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the WebSocket hub. RunWithContext already follows
// the suture.Service shape, so this only adds the service name.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps hub as a supervised service.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return s.name
}
