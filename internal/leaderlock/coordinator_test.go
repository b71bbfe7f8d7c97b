package leaderlock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/leaderlock"
)

type fakeLock struct {
	mu         sync.Mutex
	timeout    time.Duration
	acquireSeq []bool
	acquireIdx int
	refreshSeq []bool
	refreshIdx int
	released   bool
	acquireErr error
}

func (f *fakeLock) LockTimeout() time.Duration { return f.timeout }

func (f *fakeLock) TryAcquireLeader(ctx context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.acquireIdx >= len(f.acquireSeq) {
		return true, nil
	}
	ok := f.acquireSeq[f.acquireIdx]
	f.acquireIdx++
	return ok, nil
}

func (f *fakeLock) RefreshLeader(ctx context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshIdx >= len(f.refreshSeq) {
		return true, nil
	}
	ok := f.refreshSeq[f.refreshIdx]
	f.refreshIdx++
	return ok, nil
}

func (f *fakeLock) ReleaseLeader(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func TestNew_RejectsLockTimeoutBelowThreeXMaxInterval(t *testing.T) {
	lock := &fakeLock{timeout: 2 * time.Minute}
	_, err := leaderlock.New(lock, time.Minute, nil)
	if !errors.Is(err, entries.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNew_AcceptsExactlyThreeX(t *testing.T) {
	lock := &fakeLock{timeout: 3 * time.Minute}
	if _, err := leaderlock.New(lock, time.Minute, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcquire_RetriesUntilSuccess(t *testing.T) {
	lock := &fakeLock{timeout: 3 * time.Millisecond, acquireSeq: []bool{false, false, true}}
	c, err := leaderlock.New(lock, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := c.Acquire(ctx, time.Now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	lock := &fakeLock{timeout: 30 * time.Millisecond, acquireSeq: []bool{false, false, false, false, false, false, false, false, false, false}}
	c, err := leaderlock.New(lock, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if err := c.Acquire(ctx, time.Now); err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestRefresh_ReportsLoss(t *testing.T) {
	lock := &fakeLock{timeout: 3 * time.Minute, refreshSeq: []bool{false}}
	c, err := leaderlock.New(lock, time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := c.Refresh(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected refresh to report loss")
	}
}

func TestRelease_DelegatesToBackend(t *testing.T) {
	lock := &fakeLock{timeout: 3 * time.Minute}
	c, err := leaderlock.New(lock, time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Release(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lock.released {
		t.Fatal("expected backend ReleaseLeader to be called")
	}
}
