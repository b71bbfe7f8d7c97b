package postgres

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// iterator implements keyset pagination over the entries table, ordered
// by id. It fetches pageSize+1 rows per round trip; when a round trip
// returns a full page, the last row's id seeds the next fetch, otherwise
// iteration is over.
type iterator struct {
	store    *Store
	pageSize int

	lastID  int64
	buf     []bufRow
	idx     int
	done    bool
}

type bufRow struct {
	id      int64
	payload []byte
}

func (s *Store) List(ctx context.Context, pageSize int) store.Iterator {
	return &iterator{store: s, pageSize: pageSize}
}

func (it *iterator) Next(ctx context.Context) (entries.Entry, bool, error) {
	for it.idx >= len(it.buf) {
		if it.done {
			return nil, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return nil, false, err
		}
	}
	row := it.buf[it.idx]
	it.idx++
	entry, err := it.store.registry.Decode(row.payload)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: decode entry at id %d: %w", row.id, err)
	}
	return entry, true, nil
}

func (it *iterator) fetchPage(ctx context.Context) error {
	rows, err := it.store.pool.Query(ctx,
		`SELECT id, payload FROM entries WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		it.lastID, it.pageSize+1)
	if err != nil {
		return fmt.Errorf("postgres: fetch entries page: %w", err)
	}
	defer rows.Close()

	var page []bufRow
	for rows.Next() {
		var r bufRow
		if err := rows.Scan(&r.id, &r.payload); err != nil {
			return fmt.Errorf("postgres: scan entries page: %w", err)
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: iterate entries page: %w", err)
	}

	if len(page) <= it.pageSize {
		it.done = true
	} else {
		page = page[:it.pageSize]
	}
	if len(page) > 0 {
		it.lastID = page[len(page)-1].id
	}
	it.buf = page
	it.idx = 0
	return nil
}
