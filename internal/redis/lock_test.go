// ABOUTME: Tests for the distributed file lock
// ABOUTME: Covers exclusion, TTL renewal, token-safe release, and breaker fail-fast

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/resilience"
)

func TestFileLocker_Exclusive(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{
		TTL:           time.Minute,
		Wait:          100 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	if !mr.Exists(locker.LockKey("file-1")) {
		t.Fatal("lock key not set")
	}
	if ttl := mr.TTL(locker.LockKey("file-1")); ttl != time.Minute {
		t.Errorf("lock TTL = %v, want 1m", ttl)
	}

	// Another file is independent.
	unlockOther, err := locker.Lock(ctx, "file-2")
	if err != nil {
		t.Fatalf("Lock(file-2) error: %v", err)
	}
	unlockOther()

	if _, err := locker.Lock(ctx, "file-1"); !errors.Is(err, ErrLockTimeout) {
		t.Errorf("second Lock() error = %v, want ErrLockTimeout", err)
	}

	unlock()
	if mr.Exists(locker.LockKey("file-1")) {
		t.Error("lock key still present after release")
	}

	unlock2, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("Lock() after release error: %v", err)
	}
	unlock2()
}

func TestFileLocker_WaitsForRelease(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{
		Wait:          2 * time.Second,
		RetryInterval: 5 * time.Millisecond,
	})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	unlock2, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("waiting Lock() error: %v", err)
	}
	unlock2()
}

// waitForTTL polls until the key's TTL is back at want or the deadline passes.
func waitForTTL(t *testing.T, mr *miniredis.Miniredis, key string, want time.Duration) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL(key) != want {
		if time.Now().After(deadline) {
			t.Fatalf("TTL(%s) = %v, want %v", key, mr.TTL(key), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFileLocker_RenewsWhileHeld(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{
		TTL:           time.Minute,
		Wait:          50 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
		RenewInterval: 10 * time.Millisecond,
	})
	ctx := context.Background()
	key := locker.LockKey("file-1")

	unlock, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	// Hold well past the original TTL in steps the renewal keeps up with.
	for i := 0; i < 3; i++ {
		mr.FastForward(50 * time.Second)
		waitForTTL(t, mr, key, time.Minute)
	}

	if _, err := locker.Lock(ctx, "file-1"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Lock() error = %v, want ErrLockTimeout while first holder is active", err)
	}

	unlock()
	unlock()
	if mr.Exists(key) {
		t.Fatal("lock key still present after release")
	}
}

func TestFileLocker_RenewStopsWhenLockLost(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{
		TTL:           time.Minute,
		RenewInterval: 5 * time.Millisecond,
	})

	unlock, err := locker.Lock(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	defer unlock()

	key := locker.LockKey("file-1")
	mr.Del(key)
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	mr.SetTTL(key, 10*time.Second)

	time.Sleep(50 * time.Millisecond)
	if ttl := mr.TTL(key); ttl != 10*time.Second {
		t.Errorf("foreign lock TTL = %v, want 10s untouched", ttl)
	}
}

func TestFileLocker_ReleaseKeepsForeignToken(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}

	// Simulate expiry followed by another holder taking the lock.
	key := locker.LockKey("file-1")
	mr.Del(key)
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	unlock()
	if got, _ := mr.Get(key); got != "someone-else" {
		t.Errorf("lock value = %q, want someone-else", got)
	}
}

func TestFileLocker_ContextCancelled(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	locker := NewFileLocker(newTestClient(t, mr), nil, LockConfig{RetryInterval: 5 * time.Millisecond})

	unlock, err := locker.Lock(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "file-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestFileLocker_BreakerOpensWhenRedisDown(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "redis-lock",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	locker := NewFileLocker(newTestClient(t, mr), breaker, LockConfig{Wait: 50 * time.Millisecond})
	mr.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := locker.Lock(ctx, "file-1"); err == nil {
			t.Fatal("Lock() error = nil with redis down")
		}
	}

	if _, err := locker.Lock(ctx, "file-1"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Lock() error = %v, want ErrCircuitOpen", err)
	}
	if locker.BreakerState() != resilience.StateOpen {
		t.Errorf("BreakerState() = %v, want open", locker.BreakerState())
	}
	if stats := locker.BreakerStatistics(); stats.Rejections == 0 {
		t.Errorf("BreakerStatistics().Rejections = 0, want > 0: %+v", stats)
	}
}
