// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"noteplane.yaml",
	"noteplane.yml",
	"/etc/noteplane/config.yaml",
	"/etc/noteplane/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "NOTEPLANE_CONFIG"

// envPrefix namespaces every configuration environment variable.
const envPrefix = "NOTEPLANE_"

// Default returns a Config with production defaults. The engine values
// are the reference tunables: 30ms cursor throttle, 500ms content
// debounce and settle window, 10s lock lease renewed at a third of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8473,
			Timeout:      30 * time.Second,
			IngressRate:  500,
			IngressBurst: 1000,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Path:       "/data/noteplane",
			GCInterval: 5 * time.Minute,
		},
		Engine: EngineConfig{
			CursorInterval:  30 * time.Millisecond,
			ContentDebounce: 500 * time.Millisecond,
			SettleWindow:    500 * time.Millisecond,
			LockLeaseTTL:    10 * time.Second,
			CursorLiveness:  6 * time.Second,
			NoteWidth:       256,
			NoteHeight:      180,
			PanThreshold:    4,
			EraserRadius:    12,
			StrokeWidth:     3,
			RegionWidth:     350,
			ZoomMin:         0.2,
			ZoomMax:         4.0,
			SeedRegions:     []string{"Went well", "To improve", "Action items"},
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Sweeper: SweeperConfig{
			Interval:        time.Minute,
			CursorRetention: 5 * time.Minute,
			LockRetention:   time.Minute,
		},
		NATS: NATSConfig{
			Enabled:         false,
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			StoreDir:        "/data/nats/jetstream",
			InstanceID:      "",
			StreamRetention: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in production defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: NOTEPLANE_* overrides anything
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile builds the configuration with an explicit file path, for
// tests and tooling. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as environment strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"engine.seed_regions",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings; the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from defaults or YAML).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths. The
// first underscore after the prefix separates the section:
//
//	NOTEPLANE_SERVER_PORT          -> server.port
//	NOTEPLANE_ENGINE_LOCK_LEASE_TTL -> engine.lock_lease_ttl
//	NOTEPLANE_SECURITY_CORS_ORIGINS -> security.cors_origins
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}
