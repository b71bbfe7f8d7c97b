// Package leaderlock drives the acquire/refresh/release protocol shared by
// both store backends, enforcing the timeout/interval invariant once
// instead of duplicating it per backend.
package leaderlock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// Coordinator orchestrates leader election against any store.LeaderLock,
// independent of whether the backend is Postgres or Redis.
type Coordinator struct {
	lock        store.LeaderLock
	maxInterval time.Duration
	logger      *slog.Logger
}

// New validates lock_timeout >= 3*max_interval before returning a
// Coordinator: three refresh opportunities must fit inside one timeout so
// a transient stall does not trigger a spurious takeover by a peer.
func New(lock store.LeaderLock, maxInterval time.Duration, logger *slog.Logger) (*Coordinator, error) {
	if maxInterval <= 0 {
		return nil, fmt.Errorf("%w: max_interval must be greater than zero", entries.ErrValidation)
	}
	if lock.LockTimeout() < 3*maxInterval {
		return nil, fmt.Errorf("%w: lock_timeout (%s) must be at least 3x max_interval (%s)",
			entries.ErrValidation, lock.LockTimeout(), maxInterval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{lock: lock, maxInterval: maxInterval, logger: logger.With("component", "leaderlock")}, nil
}

// Acquire blocks, retrying at maxInterval, until it becomes leader or ctx
// is cancelled.
func (c *Coordinator) Acquire(ctx context.Context, now func() time.Time) error {
	for {
		acquired, err := c.lock.TryAcquireLeader(ctx, now())
		if err != nil {
			return fmt.Errorf("leaderlock: acquire: %w", err)
		}
		if acquired {
			c.logger.Info("acquired leader lock")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.maxInterval):
		}
	}
}

// Refresh extends the lock and reports whether it is still held.
func (c *Coordinator) Refresh(ctx context.Context, now time.Time) (bool, error) {
	ok, err := c.lock.RefreshLeader(ctx, now)
	if err != nil {
		return false, fmt.Errorf("leaderlock: refresh: %w", err)
	}
	if !ok {
		c.logger.Warn("lost leader lock on refresh")
	}
	return ok, nil
}

// Release gives up leadership. A mismatch or already-released lock is not
// surfaced as an error by the backend, and Release does not treat it as
// one either.
func (c *Coordinator) Release(ctx context.Context) error {
	if err := c.lock.ReleaseLeader(ctx); err != nil {
		return fmt.Errorf("leaderlock: release: %w", err)
	}
	c.logger.Info("released leader lock")
	return nil
}
