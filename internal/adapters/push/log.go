package push

import (
	"context"
	"log/slog"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// LogSink writes notifications to the log. Used when no push channel is
// configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs n and never fails.
func (s *LogSink) Deliver(ctx context.Context, n secondary.Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"recipient", n.Recipient,
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}

var _ secondary.NotificationSink = (*LogSink)(nil)
