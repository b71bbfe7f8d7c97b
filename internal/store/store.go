// Package store defines the entry store and leader lock contract shared by
// every storage backend, plus the sentinel errors backends must return for
// the dispatch loop and client surface to react to correctly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ErlanBelekov/distsched/internal/entries"
)

var (
	// ErrEntryNotFound is returned by Get when no entry is stored under the
	// given key. FireDue reports a missing key as due=false, not as this
	// error.
	ErrEntryNotFound = errors.New("store: entry not found")
	// ErrOverwriteDefaultEntry is returned by Save when the caller tries
	// to write a key that is shadowed by an in-memory default entry.
	ErrOverwriteDefaultEntry = errors.New("store: cannot overwrite a default entry")
	// ErrMethodNotImplemented marks a backend capability gap. Go's
	// interface satisfaction makes this a compile-time concern; no code
	// in this repository returns it.
	ErrMethodNotImplemented = errors.New("store: method not implemented")
)

// Iterator yields entries one at a time. Next returns ok=false once
// exhausted, with err nil unless iteration failed partway through.
type Iterator interface {
	Next(ctx context.Context) (entry entries.Entry, ok bool, err error)
}

// LeaderLock is the leader-election primitive a dispatch loop drives.
// Only the active dispatcher ever calls these methods; client-only
// processes never touch the lock.
type LeaderLock interface {
	// TryAcquireLeader attempts to become leader: it succeeds if no lock
	// record exists, or an existing record is older than LockTimeout.
	TryAcquireLeader(ctx context.Context, now time.Time) (bool, error)
	// RefreshLeader extends the lock iff the caller still holds it
	// (Postgres verifies the exact last-refresh timestamp it wrote, not
	// just "newer than"; Redis verifies the lock's random token).
	RefreshLeader(ctx context.Context, now time.Time) (bool, error)
	// ReleaseLeader relinquishes the lock. Ownership mismatches and an
	// already-released lock are not errors.
	ReleaseLeader(ctx context.Context) error
	// LockTimeout is the duration after which an unrefreshed lock
	// becomes seizable by another process.
	LockTimeout() time.Duration
}

// EntryStore is the durable-storage contract every backend satisfies.
// Default (unpersisted) entries are not part of this interface: they are
// an in-memory overlay maintained by internal/dispatch.Client, which is
// the only caller that ever sees both stored and default entries at once.
type EntryStore interface {
	// List returns an iterator over all stored entries, page by page.
	// Ordering is backend-chosen but stable: an entry present for the
	// whole iteration appears exactly once.
	List(ctx context.Context, pageSize int) Iterator
	// Get returns the stored entry for key, or ErrEntryNotFound.
	Get(ctx context.Context, key string) (entries.Entry, error)
	// Save creates or merges entry into the store. If preserveReadOnly
	// is true and a stored copy exists, the stored copy's read-only
	// fields win over the incoming entry's.
	Save(ctx context.Context, entry entries.Entry, preserveReadOnly bool) error
	// Delete removes entry from the store if present; a no-op otherwise.
	Delete(ctx context.Context, entry entries.Entry) error
	// FireDue atomically reloads the entry under key's per-entry lock,
	// checks IsEnabled and DueIn(now) <= 0, and if so calls Sent(now) and
	// persists the result, returning the fired copy and due=true. If the
	// entry is missing, disabled, or not yet due, due is false and fired
	// is nil.
	FireDue(ctx context.Context, key string, now time.Time) (fired entries.Entry, due bool, err error)

	LeaderLock
}
