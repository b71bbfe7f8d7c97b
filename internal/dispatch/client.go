// Package dispatch implements the dispatch loop (Scheduler) and the
// read/write entry surface (Client) shared by the dispatch loop's own
// iteration and the HTTP transport.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// Client exposes list/get/save/delete against a backing EntryStore, with
// an in-memory overlay of default entries that shadow stored entries of
// the same key. It is the one implementation of spec.md's "client
// surface", used both by the dispatch loop for its own entry iteration
// and by the HTTP transport.
type Client struct {
	backing store.EntryStore

	mu           sync.RWMutex
	defaultOrder []string
	defaults     map[string]entries.Entry
}

// NewClient builds a Client over backing, with defaultEntries installed
// as the in-memory overlay in the order given.
func NewClient(backing store.EntryStore, defaultEntries []entries.Entry) *Client {
	order := make([]string, 0, len(defaultEntries))
	m := make(map[string]entries.Entry, len(defaultEntries))
	for _, e := range defaultEntries {
		order = append(order, e.EntryKey())
		m[e.EntryKey()] = e
	}
	return &Client{backing: backing, defaultOrder: order, defaults: m}
}

func (c *Client) isDefault(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defaults[key]
	return ok
}

// Get returns the default entry for key if one shadows it, otherwise
// falls through to the backing store. The clone happens while still
// holding the read lock, so it can never interleave with
// FireDueDefaults' write-locked mutation of the same live entry.
func (c *Client) Get(ctx context.Context, key string) (entries.Entry, error) {
	c.mu.RLock()
	if e, ok := c.defaults[key]; ok {
		clone := e.Clone()
		c.mu.RUnlock()
		return clone, nil
	}
	c.mu.RUnlock()
	return c.backing.Get(ctx, key)
}

// Save enforces the default-entry overwrite guard before delegating to
// the backing store's own per-entry-locked merge.
func (c *Client) Save(ctx context.Context, entry entries.Entry, preserveReadOnly bool) error {
	if c.isDefault(entry.EntryKey()) {
		return store.ErrOverwriteDefaultEntry
	}
	return c.backing.Save(ctx, entry, preserveReadOnly)
}

// Delete silently ignores default entries (per spec.md §4.C) and
// otherwise delegates to the backing store.
func (c *Client) Delete(ctx context.Context, entry entries.Entry) error {
	if c.isDefault(entry.EntryKey()) {
		return nil
	}
	return c.backing.Delete(ctx, entry)
}

// List returns an iterator yielding default entries first, in declaration
// order, followed by the backing store's stored entries. Defaults are
// cloned into the snapshot so a caller serializing or inspecting them
// can't race the dispatch loop's own goroutine mutating the live default
// objects via Sent().
func (c *Client) List(ctx context.Context, pageSize int) store.Iterator {
	c.mu.RLock()
	snapshot := make([]entries.Entry, 0, len(c.defaultOrder))
	for _, k := range c.defaultOrder {
		snapshot = append(snapshot, c.defaults[k].Clone())
	}
	c.mu.RUnlock()
	return &combinedIterator{defaults: snapshot, rest: c.backing.List(ctx, pageSize)}
}

// FireDueDefaults evaluates every default entry's due-ness and, for each
// one due, marks it sent — all under a single write-lock acquisition, so
// the read-then-write sequence can never interleave with Get/List cloning
// the same live entry on another goroutine. Defaults are never persisted,
// so marking sent only ever mutates the in-memory object here.
//
// It returns clones of the entries that fired, in declaration order, plus
// the shortest positive due_in observed across every default entry
// (capped at maxInterval), for the caller to size its next sleep.
func (c *Client) FireDueDefaults(now time.Time, maxInterval time.Duration) (fired []entries.Entry, sleepFor time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sleepFor = maxInterval
	for _, k := range c.defaultOrder {
		e := c.defaults[k]
		if !e.IsEnabled() {
			continue
		}
		d := e.DueIn(now)
		if d <= 0 {
			e.Sent(now)
			fired = append(fired, e.Clone())
			continue
		}
		if d < sleepFor {
			sleepFor = d
		}
	}
	return fired, sleepFor
}

// combinedIterator chains the in-memory default entries ahead of the
// backing store's own iterator.
type combinedIterator struct {
	defaults []entries.Entry
	idx      int
	rest     store.Iterator
}

func (it *combinedIterator) Next(ctx context.Context) (entries.Entry, bool, error) {
	if it.idx < len(it.defaults) {
		e := it.defaults[it.idx]
		it.idx++
		return e, true, nil
	}
	return it.rest.Next(ctx)
}
