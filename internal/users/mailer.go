package users

import (
	"context"

	"jobboard-backend/internal/shared/telemetry"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the structured log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	telemetry.Info("mail.send", map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	return nil
}
