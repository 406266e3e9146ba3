// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

//go:build nats

package replication

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// startEmbeddedServer runs a self-contained JetStream instance for
// single-binary deployments without an external NATS cluster.
func startEmbeddedServer(storeDir string) (*natsserver.Server, error) {
	opts := &natsserver.Options{
		ServerName: "noteplane-canvas",
		Host:       "127.0.0.1",
		Port:       4222,
		JetStream:  true,
		StoreDir:   storeDir,
		MaxPayload: 1 * 1024 * 1024,
	}

	ns, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server not ready within timeout")
	}
	return ns, nil
}
