package telegram

import (
	"context"
	"log/slog"

	"github.com/m3rciful/lingobot/core/conversation"
	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// EventHandler consumes normalized inbound events.
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Outcome, error)
}

// TextHandler feeds plain text messages into h. Commands such as /start
// are ordinary text to the dialogue. Handler errors are logged, not
// returned, so telebot does not report them again.
func TextHandler(h EventHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := logger.WithHandler(middleware.ContextFrom(c), "tg.text")
		outcome, err := h.Handle(ctx, conversation.Event{
			SenderID: middleware.SenderID(c),
			Text:     c.Text(),
		})
		if err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "event.handle",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			return nil
		}
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "event.handle",
			slog.String("status", "ok"),
			slog.String("outcome", string(outcome)),
		)
		return nil
	}
}
