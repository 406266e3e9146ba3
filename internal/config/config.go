// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package config loads layered server configuration with koanf v2:
// built-in defaults, then an optional YAML file, then NOTEPLANE_*
// environment variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"time"

	"github.com/noteplane/noteplane/internal/validation"
)

// Config is the root configuration for the canvas server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Engine   EngineConfig   `koanf:"engine"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Sweeper  SweeperConfig  `koanf:"sweeper"`
	NATS     NATSConfig     `koanf:"nats"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// IngressRate and IngressBurst bound inbound write frames per
	// WebSocket connection.
	IngressRate  float64 `koanf:"ingress_rate" validate:"gt=0"`
	IngressBurst int     `koanf:"ingress_burst" validate:"gt=0"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	// Backend is "memory" (ephemeral) or "badger" (persistent).
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// Path is the Badger data directory. Ignored by the memory backend.
	Path string `koanf:"path"`

	// GCInterval is how often Badger value log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// EngineConfig carries canvas engine tunables. These are the production
// defaults for every engine bootstrapped from this server's sessions;
// embedded engines may still override per instance.
type EngineConfig struct {
	CursorInterval  time.Duration `koanf:"cursor_interval"`
	ContentDebounce time.Duration `koanf:"content_debounce"`
	SettleWindow    time.Duration `koanf:"settle_window"`
	LockLeaseTTL    time.Duration `koanf:"lock_lease_ttl"`
	CursorLiveness  time.Duration `koanf:"cursor_liveness"`

	NoteWidth    float64 `koanf:"note_width" validate:"gt=0"`
	NoteHeight   float64 `koanf:"note_height" validate:"gt=0"`
	PanThreshold float64 `koanf:"pan_threshold" validate:"gt=0"`
	EraserRadius float64 `koanf:"eraser_radius" validate:"gt=0"`
	StrokeWidth  float64 `koanf:"stroke_width" validate:"gt=0"`
	RegionWidth  float64 `koanf:"region_width" validate:"gt=0"`

	ZoomMin float64 `koanf:"zoom_min" validate:"gt=0"`
	ZoomMax float64 `koanf:"zoom_max" validate:"gt=0"`

	// SeedRegions are the column labels seeded into an empty session.
	SeedRegions []string `koanf:"seed_regions"`
}

// SecurityConfig configures CORS and HTTP rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SweeperConfig configures the background pruner for stale cursors and
// long-expired locks.
type SweeperConfig struct {
	Interval time.Duration `koanf:"interval"`

	// CursorRetention is how long past its last update a cursor record
	// is kept before pruning. LockRetention is how long past lease
	// expiry a lock record is kept.
	CursorRetention time.Duration `koanf:"cursor_retention"`
	LockRetention   time.Duration `koanf:"lock_retention"`
}

// NATSConfig configures the optional replication bridge (build tag
// "nats"). Ignored by the default build.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	// InstanceID tags published writes so an instance can ignore its
	// own echoes. Auto-generated when empty.
	InstanceID string `koanf:"instance_id"`

	StreamRetention time.Duration `koanf:"stream_retention"`
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %s", verr.Error())
	}

	// Cross-field rules the tag grammar cannot express.
	if c.Engine.ZoomMin >= c.Engine.ZoomMax {
		return fmt.Errorf("engine.zoom_min (%v) must be below engine.zoom_max (%v)",
			c.Engine.ZoomMin, c.Engine.ZoomMax)
	}
	if c.Engine.CursorInterval > 0 && c.Engine.LockLeaseTTL > 0 &&
		c.Engine.CursorInterval >= c.Engine.LockLeaseTTL {
		return fmt.Errorf("engine.cursor_interval (%v) must be below engine.lock_lease_ttl (%v); "+
			"leases renew on the flush cadence and would expire mid-gesture",
			c.Engine.CursorInterval, c.Engine.LockLeaseTTL)
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the badger backend")
	}
	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled without the embedded server")
	}
	return nil
}
