package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes mail to the log instead of sending it. Used when no provider is configured.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (l *LogMailer) Name() string { return "log" }

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	zap.S().Infow("[DEV MAIL]",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text)
	return nil
}
