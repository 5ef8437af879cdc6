package email

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/codeai/pkg/logger"
)

// LogSender writes outgoing emails to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger falls back to a discarding one.
func NewLogSender(log *slog.Logger) EmailSender {
	if log == nil {
		log = logger.Discard()
	}
	return &LogSender{logger: log}
}

func (s *LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "email not delivered, log driver active",
		logger.Email(params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
		slog.Int("body_bytes", len(params.BodyHTML)),
		logger.Component("email"),
	)
	return nil
}
