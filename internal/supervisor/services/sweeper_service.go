// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package services

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
	"github.com/noteplane/noteplane/internal/models"
	"github.com/noteplane/noteplane/internal/store"
)

// SweeperOptions tunes the background record sweeper. Zero values take
// the defaults noted per field.
type SweeperOptions struct {
	// Interval between sweep passes. Default 1m.
	Interval time.Duration

	// CursorRetention is how long a cursor record may go without a
	// refresh before it is deleted. This is retention, not liveness:
	// renderers hide cursors after a few seconds on their own, the
	// sweeper only reclaims records from participants that are long
	// gone. Default 5m.
	CursorRetention time.Duration

	// LockLeaseTTL mirrors the engine's lock lease. Readers already
	// treat a lock past its lease as free. Default 10s.
	LockLeaseTTL time.Duration

	// LockRetention is how long past its lease an expired lock record
	// is kept before deletion. Default 1m.
	LockRetention time.Duration
}

// SweeperService prunes stale cursor records and long-expired lock records
// from every session the provider knows.
//
// Both record kinds self-heal at the reader (stale cursors are hidden,
// expired locks are treated as free), so sweeping is pure storage
// reclamation and a missed pass is harmless. Deletes go through the normal
// store write path and therefore replicate and fan out like any other
// change.
type SweeperService struct {
	provider store.Provider
	opts     SweeperOptions
	name     string

	// now is swappable for tests.
	now func() time.Time
}

// NewSweeperService creates the sweeper over the provider's sessions.
func NewSweeperService(provider store.Provider, opts SweeperOptions) *SweeperService {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.CursorRetention <= 0 {
		opts.CursorRetention = 5 * time.Minute
	}
	if opts.LockLeaseTTL <= 0 {
		opts.LockLeaseTTL = 10 * time.Second
	}
	if opts.LockRetention <= 0 {
		opts.LockRetention = time.Minute
	}
	return &SweeperService{
		provider: provider,
		opts:     opts,
		name:     "record-sweeper",
		now:      time.Now,
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepAll(ctx)
		}
	}
}

// SweepAll runs one pass over every known session. Per-session errors are
// logged and skipped so one bad session cannot starve the rest.
func (s *SweeperService) SweepAll(ctx context.Context) {
	logger := logging.WithComponent("sweeper")

	ids, err := s.provider.SessionIDs()
	if err != nil {
		logger.Warn().Err(err).Msg("sweep: listing sessions failed")
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		st, err := s.provider.Session(id, false)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", id).Msg("sweep: opening session failed")
			continue
		}
		cursors, locks := s.sweepSession(ctx, st, logger.With().Str("session_id", id).Logger())
		if cursors > 0 {
			metrics.RecordSweep("cursor", cursors)
		}
		if locks > 0 {
			metrics.RecordSweep("lock", locks)
		}
		if cursors > 0 || locks > 0 {
			logger.Debug().
				Str("session_id", id).
				Int("cursors", cursors).
				Int("locks", locks).
				Msg("sweep pass pruned records")
		}
	}
}

func (s *SweeperService) sweepSession(ctx context.Context, st store.Store, logger zerolog.Logger) (cursors, locks int) {
	now := s.now()

	for _, ev := range s.collect(st, models.PrefixCursors, logger) {
		var c models.Cursor
		if err := json.Unmarshal(ev.Value, &c); err != nil {
			// Undecodable records under a typed prefix are junk.
			if s.delete(ctx, st, ev.Path, logger) {
				cursors++
			}
			continue
		}
		if c.Stale(s.opts.CursorRetention, now) && s.delete(ctx, st, ev.Path, logger) {
			cursors++
		}
	}

	for _, ev := range s.collect(st, models.PrefixLocks, logger) {
		var l models.LockState
		if err := json.Unmarshal(ev.Value, &l); err != nil {
			if s.delete(ctx, st, ev.Path, logger) {
				locks++
			}
			continue
		}
		if l.Expired(s.opts.LockLeaseTTL+s.opts.LockRetention, now) && s.delete(ctx, st, ev.Path, logger) {
			locks++
		}
	}
	return cursors, locks
}

// collect returns the current records under prefix using the snapshot a
// subscription delivers before Subscribe returns. The subscription is
// canceled immediately; the collecting flag keeps post-snapshot changes
// out of the result.
func (s *SweeperService) collect(st store.Store, prefix string, logger zerolog.Logger) []store.Event {
	var (
		mu         sync.Mutex
		collecting = true
		entries    []store.Event
	)
	cancel, err := st.Subscribe(prefix, func(e store.Event) {
		mu.Lock()
		if collecting && !e.Deleted() {
			entries = append(entries, e)
		}
		mu.Unlock()
	})
	if err != nil {
		logger.Warn().Err(err).Str("prefix", prefix).Msg("sweep: snapshot failed")
		return nil
	}
	mu.Lock()
	collecting = false
	mu.Unlock()
	cancel()
	return entries
}

func (s *SweeperService) delete(ctx context.Context, st store.Store, path string, logger zerolog.Logger) bool {
	if err := st.Write(ctx, path, nil); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("sweep: delete failed")
		return false
	}
	return true
}

// String implements fmt.Stringer for supervisor logging.
func (s *SweeperService) String() string {
	return s.name
}
