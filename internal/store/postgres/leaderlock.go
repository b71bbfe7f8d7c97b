package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TryAcquireLeader succeeds if the lock row is missing or stale. Ownership
// is tracked locally by the exact timestamp this process last wrote, so a
// subsequent RefreshLeader can tell a genuine renewal from a takeover by
// someone else.
func (s *Store) TryAcquireLeader(ctx context.Context, now time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin acquire tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastRefreshedAt time.Time
	err = tx.QueryRow(ctx, `SELECT last_refreshed_at FROM scheduler_lock WHERE id = 1 FOR UPDATE`).Scan(&lastRefreshedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `INSERT INTO scheduler_lock (id, last_refreshed_at) VALUES (1, $1)`, now); err != nil {
			return false, fmt.Errorf("postgres: insert lock row: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("postgres: lock scheduler_lock row: %w", err)
	case now.Sub(lastRefreshedAt) > s.lockTimeout:
		if _, err := tx.Exec(ctx, `UPDATE scheduler_lock SET last_refreshed_at = $1 WHERE id = 1`, now); err != nil {
			return false, fmt.Errorf("postgres: seize lock row: %w", err)
		}
	default:
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit acquire tx: %w", err)
	}
	s.setOwnership(now)
	return true, nil
}

// RefreshLeader extends the lock only if this process still owns it,
// verified by exact equality with the timestamp it last wrote.
func (s *Store) RefreshLeader(ctx context.Context, now time.Time) (bool, error) {
	owned, asOf := s.ownership()
	if !owned {
		return false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("postgres: begin refresh tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastRefreshedAt time.Time
	err = tx.QueryRow(ctx, `SELECT last_refreshed_at FROM scheduler_lock WHERE id = 1 FOR UPDATE`).Scan(&lastRefreshedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		s.clearOwnership()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: lock scheduler_lock row: %w", err)
	}
	if !lastRefreshedAt.Equal(asOf) {
		s.clearOwnership()
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE scheduler_lock SET last_refreshed_at = $1 WHERE id = 1`, now); err != nil {
		return false, fmt.Errorf("postgres: refresh lock row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("postgres: commit refresh tx: %w", err)
	}
	s.setOwnership(now)
	return true, nil
}

// ReleaseLeader deletes the lock row iff this process still owns it.
// Ownership mismatches and an already-gone row are not errors.
func (s *Store) ReleaseLeader(ctx context.Context) error {
	owned, asOf := s.ownership()
	if !owned {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin release tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastRefreshedAt time.Time
	err = tx.QueryRow(ctx, `SELECT last_refreshed_at FROM scheduler_lock WHERE id = 1 FOR UPDATE`).Scan(&lastRefreshedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		s.clearOwnership()
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres: lock scheduler_lock row: %w", err)
	}
	if !lastRefreshedAt.Equal(asOf) {
		s.clearOwnership()
		return nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM scheduler_lock WHERE id = 1`); err != nil {
		return fmt.Errorf("postgres: delete lock row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit release tx: %w", err)
	}
	s.clearOwnership()
	return nil
}

func (s *Store) setOwnership(asOf time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveOwnership = true
	// Postgres stores timestamps at microsecond precision, so keep the value
	// as it was written, not the nanosecond original, for the equality check.
	s.ownedAsOf = asOf.Truncate(time.Microsecond)
}

func (s *Store) clearOwnership() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveOwnership = false
}

func (s *Store) ownership() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haveOwnership, s.ownedAsOf
}
