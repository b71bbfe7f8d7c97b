package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/distsched/internal/dispatch"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// fakeStore is a minimal in-memory store.EntryStore for exercising
// dispatch.Client and dispatch.Scheduler without a real backend.
type fakeStore struct {
	mu          sync.Mutex
	byKey       map[string]entries.Entry
	order       []string
	lockTimeout time.Duration
	leader      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{byKey: make(map[string]entries.Entry), lockTimeout: time.Minute}
}

func (f *fakeStore) LockTimeout() time.Duration { return f.lockTimeout }

func (f *fakeStore) TryAcquireLeader(ctx context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leader {
		return false, nil
	}
	f.leader = true
	return true, nil
}

func (f *fakeStore) RefreshLeader(ctx context.Context, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader, nil
}

func (f *fakeStore) ReleaseLeader(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leader = false
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (entries.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byKey[key]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeStore) Save(ctx context.Context, entry entries.Entry, preserveReadOnly bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byKey[entry.EntryKey()]; ok && preserveReadOnly {
		if err := entries.ApplyReadOnlyFields(existing, entry); err != nil {
			return err
		}
	}
	if _, ok := f.byKey[entry.EntryKey()]; !ok {
		f.order = append(f.order, entry.EntryKey())
	}
	f.byKey[entry.EntryKey()] = entry
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, entry entries.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byKey, entry.EntryKey())
	return nil
}

func (f *fakeStore) FireDue(ctx context.Context, key string, now time.Time) (entries.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byKey[key]
	if !ok {
		return nil, false, nil
	}
	if !e.IsEnabled() || e.DueIn(now) > 0 {
		return nil, false, nil
	}
	e.Sent(now)
	f.byKey[key] = e
	return e, true, nil
}

func (f *fakeStore) List(ctx context.Context, pageSize int) store.Iterator {
	f.mu.Lock()
	snapshot := make([]entries.Entry, 0, len(f.order))
	for _, k := range f.order {
		snapshot = append(snapshot, f.byKey[k])
	}
	f.mu.Unlock()
	return &sliceIterator{entries: snapshot}
}

type sliceIterator struct {
	entries []entries.Entry
	idx     int
}

func (it *sliceIterator) Next(ctx context.Context) (entries.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return nil, false, nil
	}
	e := it.entries[it.idx]
	it.idx++
	return e, true, nil
}

func mustInterval(t *testing.T, key string, period time.Duration, last time.Time) *entries.Interval {
	t.Helper()
	e, err := entries.NewInterval(key, "task", period, true, last)
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}
	return e
}

func drain(t *testing.T, it store.Iterator) []entries.Entry {
	t.Helper()
	var out []entries.Entry
	for {
		e, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("iterator error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestClient_List_DefaultsBeforeStored(t *testing.T) {
	fs := newFakeStore()
	last := time.Now().UTC()
	stored := mustInterval(t, "stored1", time.Minute, last)
	if err := fs.Save(context.Background(), stored, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	def := mustInterval(t, "default1", time.Minute, last)
	c := dispatch.NewClient(fs, []entries.Entry{def})

	got := drain(t, c.List(context.Background(), 10))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].EntryKey() != "default1" {
		t.Fatalf("expected default entry first, got %s", got[0].EntryKey())
	}
	if got[1].EntryKey() != "stored1" {
		t.Fatalf("expected stored entry second, got %s", got[1].EntryKey())
	}
}

func TestClient_Get_DefaultShadowsStored(t *testing.T) {
	fs := newFakeStore()
	last := time.Now().UTC()
	stored := mustInterval(t, "k", time.Minute, last)
	_ = fs.Save(context.Background(), stored, true)

	def := mustInterval(t, "k", 2*time.Minute, last)
	c := dispatch.NewClient(fs, []entries.Entry{def})

	got, err := c.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(*entries.Interval).Period.Duration() != 2*time.Minute {
		t.Fatal("expected default entry to shadow stored entry")
	}
}

func TestClient_Save_RejectsOverwritingDefault(t *testing.T) {
	fs := newFakeStore()
	last := time.Now().UTC()
	def := mustInterval(t, "k", time.Minute, last)
	c := dispatch.NewClient(fs, []entries.Entry{def})

	attempt := mustInterval(t, "k", 5*time.Minute, last)
	err := c.Save(context.Background(), attempt, true)
	if !errors.Is(err, store.ErrOverwriteDefaultEntry) {
		t.Fatalf("expected ErrOverwriteDefaultEntry, got %v", err)
	}
}

func TestClient_Delete_SilentlyIgnoresDefault(t *testing.T) {
	fs := newFakeStore()
	last := time.Now().UTC()
	def := mustInterval(t, "k", time.Minute, last)
	c := dispatch.NewClient(fs, []entries.Entry{def})

	if err := c.Delete(context.Background(), def); err != nil {
		t.Fatalf("expected no error deleting default entry, got %v", err)
	}
}

func TestClient_FireDueDefaults_FiresOnlyDueEntries(t *testing.T) {
	fs := newFakeStore()
	now := time.Now().UTC()

	due := mustInterval(t, "due", time.Minute, now.Add(-time.Hour))
	notDue := mustInterval(t, "not-due", time.Hour, now)
	disabled := mustInterval(t, "disabled", time.Minute, now.Add(-time.Hour))
	disabled.SetEnabled(false)

	c := dispatch.NewClient(fs, []entries.Entry{due, notDue, disabled})

	fired, sleepFor := c.FireDueDefaults(now, time.Hour)
	if len(fired) != 1 || fired[0].EntryKey() != "due" {
		t.Fatalf("expected only %q to fire, got %v", "due", fired)
	}
	if sleepFor != time.Hour {
		t.Fatalf("expected sleepFor capped at maxInterval by the not-due entry, got %v", sleepFor)
	}

	// A second call right away must not re-fire the same entry: Sent()
	// already advanced its LastSentAt.
	fired, _ = c.FireDueDefaults(now, time.Hour)
	if len(fired) != 0 {
		t.Fatalf("expected no re-fire immediately after Sent, got %v", fired)
	}
}

func TestClient_FireDueDefaults_RaceSafeAgainstConcurrentGet(t *testing.T) {
	fs := newFakeStore()
	now := time.Now().UTC()
	def := mustInterval(t, "k", time.Millisecond, now.Add(-time.Hour))
	c := dispatch.NewClient(fs, []entries.Entry{def})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.FireDueDefaults(time.Now().UTC(), time.Hour)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = c.Get(context.Background(), "k")
		}
	}()
	wg.Wait()
}
