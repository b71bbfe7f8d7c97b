package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/distsched/internal/dispatch"
	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/leaderlock"
)

type fakeSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSink) Send(ctx context.Context, entry entries.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, entry.EntryKey())
	return nil
}

func (s *fakeSink) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestScheduler_Run_FiresDefaultAndStoredEntries(t *testing.T) {
	fs := newFakeStore()
	past := time.Now().UTC().Add(-time.Hour)

	stored := mustInterval(t, "stored1", time.Minute, past)
	if err := fs.Save(context.Background(), stored, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	def := mustInterval(t, "default1", time.Minute, past)
	client := dispatch.NewClient(fs, []entries.Entry{def})

	coord, err := leaderlock.New(fs, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("leaderlock.New: %v", err)
	}

	sk := &fakeSink{}
	sched := dispatch.NewScheduler(client, fs, coord, sk, 50*time.Millisecond, nil)

	if err := sched.Run(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sk.keys()
	if len(sent) != 2 {
		t.Fatalf("expected 2 entries fired, got %v", sent)
	}
}

func TestScheduler_Run_SkipsDisabledEntries(t *testing.T) {
	fs := newFakeStore()
	past := time.Now().UTC().Add(-time.Hour)

	stored := mustInterval(t, "stored1", time.Minute, past)
	stored.SetEnabled(false)
	if err := fs.Save(context.Background(), stored, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := dispatch.NewClient(fs, nil)
	coord, err := leaderlock.New(fs, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("leaderlock.New: %v", err)
	}

	sk := &fakeSink{}
	sched := dispatch.NewScheduler(client, fs, coord, sk, 50*time.Millisecond, nil)

	if err := sched.Run(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sk.keys()) != 0 {
		t.Fatalf("expected disabled entry not fired, got %v", sk.keys())
	}
}

func TestScheduler_Run_RespectsMaxIterations(t *testing.T) {
	fs := newFakeStore()
	client := dispatch.NewClient(fs, nil)
	coord, err := leaderlock.New(fs, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("leaderlock.New: %v", err)
	}
	sk := &fakeSink{}
	sched := dispatch.NewScheduler(client, fs, coord, sk, time.Millisecond, nil)

	start := time.Now()
	if err := sched.Run(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("expected Run to return promptly once maxIterations reached")
	}
}
