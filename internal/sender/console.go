package sender

import (
	"context"
	"log/slog"
)

type consoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender logs messages instead of delivering them. Used for local runs.
func NewConsoleSender(logger *slog.Logger) Sender {
	return &consoleSender{logger: logger.With("layer", "sender", "component", "console")}
}

func (s *consoleSender) Send(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Notification delivered to console",
		slog.String("channel_id", channelID),
		slog.String("text", text),
	)
	return nil
}
