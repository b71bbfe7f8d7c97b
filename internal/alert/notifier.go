// Package alert sends operator-facing notifications when the dispatch
// loop can't deliver an entry, adapted from the reference repo's
// magic-link email sender onto an alerting use instead.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Notifier sends a single alert message to an operator address.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier logs alerts instead of sending them — used in ENV=local.
type LogNotifier struct {
	logger *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.logger.Warn("sink alert (local dev)", "subject", subject, "body", body)
	return nil
}

// ResendNotifier sends alerts via the Resend API — used in staging/production.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     string
}

func (n *ResendNotifier) Notify(ctx context.Context, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: subject,
		Html:    body,
	}
	_, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// NewNotifier returns a LogNotifier for ENV=local, ResendNotifier otherwise.
func NewNotifier(env, apiKey, from, to string, logger *slog.Logger) Notifier {
	if env == "local" {
		return &LogNotifier{logger: logger}
	}
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}
