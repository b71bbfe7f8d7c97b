package alert_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/distsched/internal/alert"
	"github.com/ErlanBelekov/distsched/internal/entries"
)

type fakeSink struct {
	err error
}

func (f *fakeSink) Send(ctx context.Context, entry entries.Entry) error { return f.err }

type fakeNotifier struct {
	mu      sync.Mutex
	notices int
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notices
}

func TestNotifyingSink_AlertsOnFailureButForwardsError(t *testing.T) {
	inner := &fakeSink{err: errors.New("broker unreachable")}
	notifier := &fakeNotifier{}
	s := alert.NewNotifyingSink(inner, notifier, nil)

	e, err := entries.NewInterval("k", "task", time.Minute, true, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}

	sendErr := s.Send(context.Background(), e)
	if !errors.Is(sendErr, inner.err) {
		t.Fatalf("expected original error forwarded, got %v", sendErr)
	}

	deadline := time.Now().Add(time.Second)
	for notifier.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one alert notification, got %d", notifier.count())
	}
}

func TestNotifyingSink_NoAlertOnSuccess(t *testing.T) {
	inner := &fakeSink{}
	notifier := &fakeNotifier{}
	s := alert.NewNotifyingSink(inner, notifier, nil)

	e, err := entries.NewInterval("k", "task", time.Minute, true, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}

	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if notifier.count() != 0 {
		t.Fatalf("expected no alert on success, got %d", notifier.count())
	}
}
