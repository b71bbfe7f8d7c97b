// Package redisstore implements store.EntryStore on a single Redis
// instance: entries live in one hash, per-entry and leader locks are
// SET NX PX keys extended/released via Lua scripts so that only the
// holder of a lock's random token can extend or release it (the
// Redlock-style single-instance variant spec.md allows).
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/distsched/internal/codec"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	entriesHashKey  = "scheduler:entries"
	leaderLockKey   = "scheduler:lock"
	entryLockKeyPfx = "scheduler:entry_lock:"
)

// extendScript renews a lock's TTL only if the caller's token still owns
// it; releaseScript deletes the key under the same condition. Both avoid
// the classic check-then-act race a plain GET+EXPIRE/DEL would have.
var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// Store implements store.EntryStore against a single go-redis client.
type Store struct {
	rdb         *redis.Client
	registry    *codec.Registry
	lockTimeout time.Duration

	leaderToken string // token this process holds for scheduler:lock, if any
}

func NewStore(rdb *redis.Client, registry *codec.Registry, lockTimeout time.Duration) *Store {
	return &Store{rdb: rdb, registry: registry, lockTimeout: lockTimeout}
}

func (s *Store) LockTimeout() time.Duration { return s.lockTimeout }

func (s *Store) Get(ctx context.Context, key string) (entries.Entry, error) {
	payload, err := s.rdb.HGet(ctx, entriesHashKey, key).Result()
	if err == redis.Nil {
		return nil, store.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get entry %q: %w", key, err)
	}
	return s.registry.Decode([]byte(payload))
}

func (s *Store) Save(ctx context.Context, entry entries.Entry, preserveReadOnly bool) error {
	unlock, err := s.lockEntry(ctx, entry.EntryKey())
	if err != nil {
		return fmt.Errorf("redisstore: lock entry %q: %w", entry.EntryKey(), err)
	}
	defer unlock(ctx)

	if preserveReadOnly {
		existingRaw, err := s.rdb.HGet(ctx, entriesHashKey, entry.EntryKey()).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("redisstore: read entry %q: %w", entry.EntryKey(), err)
		}
		if err == nil {
			existing, decErr := s.registry.Decode([]byte(existingRaw))
			if decErr != nil {
				return fmt.Errorf("redisstore: decode stored entry %q: %w", entry.EntryKey(), decErr)
			}
			if mergeErr := entries.ApplyReadOnlyFields(existing, entry); mergeErr != nil {
				return fmt.Errorf("redisstore: merge entry %q: %w", entry.EntryKey(), mergeErr)
			}
		}
	}

	payload, err := codec.Encode(entry)
	if err != nil {
		return fmt.Errorf("redisstore: encode entry %q: %w", entry.EntryKey(), err)
	}
	if err := s.rdb.HSet(ctx, entriesHashKey, entry.EntryKey(), payload).Err(); err != nil {
		return fmt.Errorf("redisstore: write entry %q: %w", entry.EntryKey(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, entry entries.Entry) error {
	if err := s.rdb.HDel(ctx, entriesHashKey, entry.EntryKey()).Err(); err != nil {
		return fmt.Errorf("redisstore: delete entry %q: %w", entry.EntryKey(), err)
	}
	return nil
}

func (s *Store) FireDue(ctx context.Context, key string, now time.Time) (entries.Entry, bool, error) {
	unlock, err := s.lockEntry(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: lock entry %q: %w", key, err)
	}
	defer unlock(ctx)

	payload, err := s.rdb.HGet(ctx, entriesHashKey, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: read entry %q: %w", key, err)
	}

	entry, err := s.registry.Decode([]byte(payload))
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: decode entry %q: %w", key, err)
	}
	if !entry.IsEnabled() || entry.DueIn(now) > 0 {
		return nil, false, nil
	}

	entry.Sent(now)
	newPayload, err := codec.Encode(entry)
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: encode fired entry %q: %w", key, err)
	}
	if err := s.rdb.HSet(ctx, entriesHashKey, key, newPayload).Err(); err != nil {
		return nil, false, fmt.Errorf("redisstore: persist fired entry %q: %w", key, err)
	}
	return entry, true, nil
}

// lockEntry acquires scheduler:entry_lock:<key> with a random token and a
// TTL of lockTimeout, blocking (with short retries) until available. The
// returned unlock func releases it via releaseScript so a stale client
// can never release a lock another process now holds.
func (s *Store) lockEntry(ctx context.Context, key string) (func(context.Context), error) {
	lockKey := entryLockKeyPfx + key
	token := uuid.NewString()
	ttl := s.lockTimeout
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	for {
		ok, err := s.rdb.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, s.rdb, []string{lockKey}, token).Err()
	}, nil
}

var _ store.EntryStore = (*Store)(nil)
