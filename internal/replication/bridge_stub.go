// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

//go:build !nats

package replication

import (
	"context"

	"github.com/noteplane/noteplane/internal/config"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/store"
)

// Bridge is a stub for builds without NATS support.
type Bridge struct {
	provider store.Provider
}

// New warns when replication is configured but not compiled in, and
// otherwise does nothing. A nil bridge means replication is off.
func New(cfg config.NATSConfig, provider store.Provider) (*Bridge, error) {
	if cfg.Enabled {
		logging.Warn().Msg("nats.enabled is set but NATS support is not compiled (build with -tags nats)")
	}
	return nil, nil
}

// Provider returns the provider unchanged.
func (b *Bridge) Provider() store.Provider {
	return b.provider
}

// Serve blocks until the context is canceled.
func (b *Bridge) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer.
func (b *Bridge) String() string {
	return "replication-bridge"
}

// Close is a no-op.
func (b *Bridge) Close() error {
	return nil
}
