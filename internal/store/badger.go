// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/metrics"
)

// Badger key layout: s/<sessionID>/<path>. Paths never contain the empty
// segment, so the prefix is unambiguous.
const badgerKeyPrefix = "s/"

// BadgerConfig tunes the durable provider.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory runs Badger without touching disk; state is lost on close.
	InMemory bool
	// SyncWrites makes every commit fsync. Durable but slower; canvas
	// traffic is small enough that the default on is affordable.
	SyncWrites bool
	// GCInterval is how often the value-log garbage collector runs.
	// Zero disables the internal loop (the caller runs GC itself).
	GCInterval time.Duration
}

// BadgerProvider keeps every session in one Badger database, scoping each
// session's entries with a key prefix. Stores handed out are cached so all
// connections of a session share one apply lock and one fanout.
type BadgerProvider struct {
	db *badger.DB

	mu       sync.Mutex
	sessions map[string]*BadgerSession
	closed   bool

	gcStop chan struct{}
	gcDone chan struct{}
}

// OpenBadger opens (or creates) the database and starts the GC loop when
// configured.
func OpenBadger(cfg BadgerConfig) (*BadgerProvider, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("store: badger path required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	p := &BadgerProvider{
		db:       db,
		sessions: make(map[string]*BadgerSession),
		gcStop:   make(chan struct{}),
		gcDone:   make(chan struct{}),
	}

	if cfg.GCInterval > 0 {
		go p.gcLoop(cfg.GCInterval)
	} else {
		close(p.gcDone)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Badger store opened")
	return p, nil
}

func (p *BadgerProvider) gcLoop(interval time.Duration) {
	defer close(p.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.gcStop:
			return
		case <-ticker.C:
			if err := p.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Badger value log GC failed")
			}
		}
	}
}

// RunGC rewrites value log files until Badger reports nothing left to do.
func (p *BadgerProvider) RunGC() error {
	for {
		err := p.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if errors.Is(err, badger.ErrRejected) {
			// GC already running or the DB is closing.
			return nil
		}
		if err != nil {
			return fmt.Errorf("badger gc: %w", err)
		}
	}
}

// Session implements Provider.
func (p *BadgerProvider) Session(sessionID string, create bool) (Store, error) {
	if sessionID == "" || strings.Contains(sessionID, "/") {
		return nil, fmt.Errorf("%w: bad session id %q", ErrInvalidPath, sessionID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if s, ok := p.sessions[sessionID]; ok {
		return s, nil
	}

	if !create {
		exists, err := p.hasData(sessionID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrSessionUnknown
		}
	}

	s := &BadgerSession{
		db:        p.db,
		keyPrefix: badgerKeyPrefix + sessionID + "/",
		fan:       newFanout(),
	}
	p.sessions[sessionID] = s
	return s, nil
}

// hasData reports whether any key exists for the session.
func (p *BadgerProvider) hasData(sessionID string) (bool, error) {
	prefix := []byte(badgerKeyPrefix + sessionID + "/")
	found := false
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		found = it.ValidForPrefix(prefix)
		return nil
	})
	return found, err
}

// SessionIDs implements Provider by scanning for meta keys.
func (p *BadgerProvider) SessionIDs() ([]string, error) {
	var ids []string
	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, badgerKeyPrefix)
			id, path, ok := strings.Cut(rest, "/")
			if ok && path == "meta" && id != "" {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

// Close stops GC, closes every session fanout, and closes the database.
func (p *BadgerProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := make([]*BadgerSession, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	close(p.gcStop)
	<-p.gcDone

	for _, s := range sessions {
		s.markClosed()
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	logging.Info().Msg("Badger store closed")
	return nil
}

// BadgerSession is the Store view of one session inside a BadgerProvider.
type BadgerSession struct {
	db        *badger.DB
	keyPrefix string

	mu     sync.Mutex // apply lock: commit order == publish order
	fan    *fanout
	closed bool
}

func (s *BadgerSession) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.fan.closeAll()
}

func (s *BadgerSession) key(path string) []byte {
	return []byte(s.keyPrefix + path)
}

// Read implements Store.
func (s *BadgerSession) Read(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %q: %w", path, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordStoreRead("badger")
	return value, nil
}

// Write implements Store.
func (s *BadgerSession) Write(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	raw, err := Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if raw == nil {
		events, err := s.deleteSubtreeLocked(path)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			s.fan.publish(events)
		}
		metrics.RecordStoreDelete("badger", len(events))
		return nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(path), raw)
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	s.fan.publish([]Event{{Path: path, Value: raw}})
	metrics.RecordStoreWrite("badger")
	return nil
}

// deleteSubtreeLocked removes path and its subtree, returning deletion
// events in key order. Keys are collected first; Badger cannot delete
// while iterating.
func (s *BadgerSession) deleteSubtreeLocked(path string) ([]Event, error) {
	exact := s.key(path)
	subtree := s.key(path + "/")

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(s.keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if string(k) == string(exact) || strings.HasPrefix(string(k), string(subtree)) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan subtree %q: %w", path, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return nil, fmt.Errorf("delete %q: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("flush subtree delete %q: %w", path, err)
	}

	events := make([]Event, 0, len(keys))
	for _, k := range keys {
		events = append(events, Event{Path: strings.TrimPrefix(string(k), s.keyPrefix)})
	}
	return events, nil
}

// Subscribe implements Store.
func (s *BadgerSession) Subscribe(prefix string, fn func(Event)) (func(), error) {
	if prefix != "" {
		if err := ValidatePath(prefix); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	snapshot, err := s.snapshot(prefix)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sub, cancel := s.fan.add(prefix, fn)
	s.mu.Unlock()

	for _, e := range snapshot {
		fn(e)
	}
	sub.arm()
	return cancel, nil
}

// snapshot reads the current entries under prefix in key order. Called
// with the apply lock held so it is consistent with the event stream.
func (s *BadgerSession) snapshot(prefix string) ([]Event, error) {
	var events []Event
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(s.keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), s.keyPrefix)
			if !MatchesPrefix(path, prefix) {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			events = append(events, Event{Path: path, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", prefix, err)
	}
	return events, nil
}
