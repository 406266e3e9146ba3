// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noteplane/noteplane/internal/store"
)

// eventually polls cond until it holds or the deadline passes. Lock state
// crosses manager boundaries through asynchronous subscription delivery,
// so cross-manager assertions must wait for convergence.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func setupManagers(t *testing.T, opts ...Option) (*Manager, *Manager) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })

	a, err := NewManager(st, "alice", opts...)
	if err != nil {
		t.Fatalf("NewManager(alice) failed: %v", err)
	}
	t.Cleanup(a.Close)

	b, err := NewManager(st, "bob", opts...)
	if err != nil {
		t.Fatalf("NewManager(bob) failed: %v", err)
	}
	t.Cleanup(b.Close)
	return a, b
}

func TestAcquireVisibleToOthers(t *testing.T) {
	t.Parallel()

	alice, bob := setupManagers(t)
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The acquirer's own check passes immediately via the optimistic mirror.
	if alice.IsHeldByOther("n1", KindMoving) {
		t.Error("owner sees its own lock as held by other")
	}
	if !alice.HeldBySelf("n1", KindMoving) {
		t.Error("owner does not see its own lock")
	}

	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindMoving) },
		"bob never observed alice's lock")

	// Kinds are independent: the move lock does not block editing.
	if bob.IsHeldByOther("n1", KindEditing) {
		t.Error("move lock leaked into editing kind")
	}
}

func TestReleaseFreesLock(t *testing.T) {
	t.Parallel()

	alice, bob := setupManagers(t)
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindMoving) },
		"bob never observed the lock")

	if err := alice.Release(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	eventually(t, func() bool { return !bob.IsHeldByOther("n1", KindMoving) },
		"bob never observed the release")
}

func TestLeaseExpiryFreesAbandonedLock(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	alice, bob := setupManagers(t,
		WithLeaseTTL(100*time.Millisecond), WithClock(clock))
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindEditing); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindEditing) },
		"bob never observed the lock")

	// Alice vanishes without releasing; the lease runs out.
	mu.Lock()
	now = now.Add(200 * time.Millisecond)
	mu.Unlock()

	if bob.IsHeldByOther("n1", KindEditing) {
		t.Error("expired lease still reads as held")
	}
	if _, ok := bob.Owner("n1", KindEditing); ok {
		t.Error("expired lease still reports an owner")
	}
}

func TestRenewExtendsLease(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	alice, bob := setupManagers(t,
		WithLeaseTTL(100*time.Millisecond), WithClock(clock))
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindMoving) },
		"bob never observed the lock")

	// Renew mid-lease, then advance beyond the original deadline.
	mu.Lock()
	now = now.Add(80 * time.Millisecond)
	mu.Unlock()
	if err := alice.Renew(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	mu.Lock()
	now = now.Add(80 * time.Millisecond)
	mu.Unlock()

	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindMoving) },
		"renewed lock expired from bob's perspective")
}

// Two participants acquire the same lock within one propagation window.
// Exactly one owner survives convergence and the loser's pre-gesture
// check refuses the mutation.
func TestConcurrentAcquireConvergesToOneOwner(t *testing.T) {
	t.Parallel()

	alice, bob := setupManagers(t)
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("alice Acquire failed: %v", err)
	}
	if err := bob.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("bob Acquire failed: %v", err)
	}

	// Last write wins: bob's acquisition is the store's final state and
	// both sides converge on it.
	eventually(t, func() bool {
		o1, ok1 := alice.Owner("n1", KindMoving)
		o2, ok2 := bob.Owner("n1", KindMoving)
		return ok1 && ok2 && o1 == "bob" && o2 == "bob"
	}, "managers never converged to a single owner")

	if !alice.IsHeldByOther("n1", KindMoving) {
		t.Error("losing participant does not see the lock as taken")
	}
	if bob.IsHeldByOther("n1", KindMoving) {
		t.Error("winning participant sees its own lock as taken")
	}
}

func TestForceRelease(t *testing.T) {
	t.Parallel()

	alice, bob := setupManagers(t)
	ctx := context.Background()

	if err := alice.Acquire(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	eventually(t, func() bool { return bob.IsHeldByOther("n1", KindMoving) },
		"bob never observed the lock")

	if err := bob.ForceRelease(ctx, "n1", KindMoving); err != nil {
		t.Fatalf("ForceRelease failed: %v", err)
	}
	eventually(t, func() bool { return !bob.IsHeldByOther("n1", KindMoving) },
		"force release did not free the lock")
}
