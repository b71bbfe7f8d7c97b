package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ErlanBelekov/distsched/internal/codec"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements store.EntryStore on a single Postgres database: one
// jsonb-payload table for entries, one single-row table for the leader
// lock. Per-entry and leader locking both use row-level SELECT ... FOR
// UPDATE within a transaction.
type Store struct {
	pool        *pgxpool.Pool
	registry    *codec.Registry
	lockTimeout time.Duration

	mu            sync.Mutex
	ownedAsOf     time.Time
	haveOwnership bool
}

func NewStore(pool *pgxpool.Pool, registry *codec.Registry, lockTimeout time.Duration) *Store {
	return &Store{pool: pool, registry: registry, lockTimeout: lockTimeout}
}

var _ store.EntryStore = (*Store)(nil)

func (s *Store) LockTimeout() time.Duration { return s.lockTimeout }

func (s *Store) Get(ctx context.Context, key string) (entries.Entry, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM entries WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get entry %q: %w", key, err)
	}
	return s.registry.Decode(payload)
}

func (s *Store) Save(ctx context.Context, entry entries.Entry, preserveReadOnly bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingPayload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM entries WHERE key = $1 FOR UPDATE`, entry.EntryKey()).Scan(&existingPayload)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		payload, encErr := codec.Encode(entry)
		if encErr != nil {
			return fmt.Errorf("postgres: encode entry %q: %w", entry.EntryKey(), encErr)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO entries (key, payload) VALUES ($1, $2)`, entry.EntryKey(), payload); err != nil {
			return fmt.Errorf("postgres: insert entry %q: %w", entry.EntryKey(), err)
		}
	case err != nil:
		return fmt.Errorf("postgres: lock entry %q: %w", entry.EntryKey(), err)
	default:
		if preserveReadOnly {
			existing, decErr := s.registry.Decode(existingPayload)
			if decErr != nil {
				return fmt.Errorf("postgres: decode stored entry %q: %w", entry.EntryKey(), decErr)
			}
			if mergeErr := entries.ApplyReadOnlyFields(existing, entry); mergeErr != nil {
				return fmt.Errorf("postgres: merge entry %q: %w", entry.EntryKey(), mergeErr)
			}
		}
		payload, encErr := codec.Encode(entry)
		if encErr != nil {
			return fmt.Errorf("postgres: encode entry %q: %w", entry.EntryKey(), encErr)
		}
		if _, err := tx.Exec(ctx, `UPDATE entries SET payload = $2 WHERE key = $1`, entry.EntryKey(), payload); err != nil {
			return fmt.Errorf("postgres: update entry %q: %w", entry.EntryKey(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save tx: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entry entries.Entry) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE key = $1`, entry.EntryKey()); err != nil {
		return fmt.Errorf("postgres: delete entry %q: %w", entry.EntryKey(), err)
	}
	return nil
}

// FireDue performs the whole lock/reload/check/mark-sent/persist sequence
// inside one transaction, so a concurrent Save or FireDue on the same key
// blocks on the row lock rather than racing.
func (s *Store) FireDue(ctx context.Context, key string, now time.Time) (entries.Entry, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: begin fire tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var payload []byte
	err = tx.QueryRow(ctx, `SELECT payload FROM entries WHERE key = $1 FOR UPDATE`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: lock entry %q: %w", key, err)
	}

	entry, err := s.registry.Decode(payload)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: decode entry %q: %w", key, err)
	}
	if !entry.IsEnabled() || entry.DueIn(now) > 0 {
		return nil, false, nil
	}

	entry.Sent(now)
	newPayload, err := codec.Encode(entry)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: encode fired entry %q: %w", key, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE entries SET payload = $2 WHERE key = $1`, key, newPayload); err != nil {
		return nil, false, fmt.Errorf("postgres: persist fired entry %q: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("postgres: commit fire tx: %w", err)
	}
	return entry, true, nil
}
