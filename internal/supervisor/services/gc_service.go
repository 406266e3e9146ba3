// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package services

import (
	"context"
	"time"

	"github.com/noteplane/noteplane/internal/logging"
)

// GarbageCollector matches *store.BadgerProvider.RunGC.
type GarbageCollector interface {
	RunGC() error
}

// BadgerGCService runs Badger value-log garbage collection on an interval.
// The provider must be opened with its internal GC loop disabled
// (GCInterval zero), otherwise two collectors compete.
//
// A failed pass is logged and retried next tick rather than returned,
// since a GC error is never worth a service restart.
type BadgerGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewBadgerGCService wraps gc as a supervised service. A non-positive
// interval defaults to 5 minutes.
func NewBadgerGCService(gc GarbageCollector, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BadgerGCService{
		gc:       gc,
		interval: interval,
		name:     "badger-gc",
	}
}

// Serve implements suture.Service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	logger := logging.WithComponent("badger-gc")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.gc.RunGC(); err != nil {
				logger.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *BadgerGCService) String() string {
	return s.name
}
