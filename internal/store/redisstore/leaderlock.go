package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TryAcquireLeader takes scheduler:lock with SET NX PX; success means no
// one else currently holds it (an expired holder's key has already been
// removed by Redis itself, which is how TTL expiry stands in for the
// relational backend's "stale timestamp" seizure check).
func (s *Store) TryAcquireLeader(ctx context.Context, now time.Time) (bool, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, leaderLockKey, token, s.lockTimeout).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: acquire leader lock: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.leaderToken = token
	return true, nil
}

// RefreshLeader extends the TTL only if this process's token is still the
// one stored, via extendScript's compare-and-expire.
func (s *Store) RefreshLeader(ctx context.Context, now time.Time) (bool, error) {
	if s.leaderToken == "" {
		return false, nil
	}
	res, err := extendScript.Run(ctx, s.rdb, []string{leaderLockKey}, s.leaderToken, s.lockTimeout.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redisstore: refresh leader lock: %w", err)
	}
	if res == 0 {
		s.leaderToken = ""
		return false, nil
	}
	return true, nil
}

// ReleaseLeader deletes scheduler:lock only if this process's token still
// owns it. An ownership mismatch or a lock that already expired is not an
// error.
func (s *Store) ReleaseLeader(ctx context.Context) error {
	if s.leaderToken == "" {
		return nil
	}
	err := releaseScript.Run(ctx, s.rdb, []string{leaderLockKey}, s.leaderToken).Err()
	s.leaderToken = ""
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redisstore: release leader lock: %w", err)
	}
	return nil
}
