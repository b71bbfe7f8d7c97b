package redisstore

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// iterator wraps HSCAN over the entries hash. HSCAN's cursor protocol can
// legitimately return an empty batch alongside a non-zero cursor (Redis
// rehashing mid-scan); Next treats that as "fetch again", not "done".
type iterator struct {
	store    *Store
	pageSize int64

	cursor  uint64
	started bool
	buf     []string // alternating field, value
	idx     int
}

func (s *Store) List(ctx context.Context, pageSize int) store.Iterator {
	return &iterator{store: s, pageSize: int64(pageSize)}
}

func (it *iterator) Next(ctx context.Context) (entries.Entry, bool, error) {
	for it.idx >= len(it.buf) {
		if it.started && it.cursor == 0 {
			return nil, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return nil, false, err
		}
	}
	value := it.buf[it.idx+1]
	it.idx += 2
	entry, err := it.store.registry.Decode([]byte(value))
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: decode entry: %w", err)
	}
	return entry, true, nil
}

func (it *iterator) fetchPage(ctx context.Context) error {
	batch, nextCursor, err := it.store.rdb.HScan(ctx, entriesHashKey, it.cursor, "", it.pageSize).Result()
	if err != nil {
		return fmt.Errorf("redisstore: hscan entries: %w", err)
	}
	it.started = true
	it.cursor = nextCursor
	it.buf = batch
	it.idx = 0
	return nil
}
