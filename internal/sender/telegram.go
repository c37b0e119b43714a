package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel/attribute"

	appErr "github.com/samims/taskpulse/internal/errors"
	"github.com/samims/taskpulse/pkg/tracing"
)

// botAPI is the part of *tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramSender struct {
	bot                botAPI
	disableLinkPreview bool
	logger             *slog.Logger
	tracer             *tracing.Tracer
}

// NewTelegramSender sends through the Telegram Bot API; channel ids are chat ids.
func NewTelegramSender(bot *tgbotapi.BotAPI, disableLinkPreview bool, logger *slog.Logger) Sender {
	return &telegramSender{
		bot:                bot,
		disableLinkPreview: disableLinkPreview,
		logger:             logger.With("layer", "sender", "component", "telegram"),
		tracer:             tracing.NewTracer(tracing.GetTracer("telegram-sender")),
	}
}

func (s *telegramSender) Send(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: channel id %q is not a telegram chat id", appErr.ErrNoRecipient, channelID)
	}

	ctx, span := s.tracer.StartClientSpan(ctx, "telegram.sendMessage",
		attribute.Int64("telegram.chat_id", chatID),
	)
	defer span.End()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = s.disableLinkPreview

	sent, err := s.bot.Send(msg)
	if err != nil {
		err = fmt.Errorf("telegram send to %d: %w", chatID, err)
		s.tracer.RecordError(span, err)
		return err
	}
	s.logger.DebugContext(ctx, "Telegram message sent", slog.Int64("chat_id", chatID), slog.Int("message_id", sent.MessageID))
	return nil
}
