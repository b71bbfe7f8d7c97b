package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/sink"
)

// NotifyingSink wraps any sink.Sink and fires an async alert on delivery
// failure, without changing the sink's own error-handling contract: the
// dispatch loop still sees "logged, loop continues" behavior, the alert
// is purely additive.
type NotifyingSink struct {
	inner    sink.Sink
	notifier Notifier
	logger   *slog.Logger
}

func NewNotifyingSink(inner sink.Sink, notifier Notifier, logger *slog.Logger) *NotifyingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyingSink{inner: inner, notifier: notifier, logger: logger.With("component", "notifying_sink")}
}

func (s *NotifyingSink) Send(ctx context.Context, entry entries.Entry) error {
	err := s.inner.Send(ctx, entry)
	if err != nil {
		go s.alert(entry, err)
	}
	return err
}

func (s *NotifyingSink) alert(entry entries.Entry, sendErr error) {
	ctx := context.Background()
	subject := fmt.Sprintf("scheduler: failed to dispatch entry %q", entry.EntryKey())
	body := fmt.Sprintf("Entry %q (task %q) failed to dispatch: %s", entry.EntryKey(), entry.Task(), sendErr)
	if err := s.notifier.Notify(ctx, subject, body); err != nil {
		s.logger.Error("failed to send alert notification", "entry_key", entry.EntryKey(), "error", err)
	}
}

var _ sink.Sink = (*NotifyingSink)(nil)
