package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/lingobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	platform   = "telegram"
	contextKey = "logger_ctx"
)

// ContextFrom returns the request context stored by LoggerMiddleware, or a
// fresh one built from the update.
func ContextFrom(c tele.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if v, ok := c.Get(contextKey).(context.Context); ok && v != nil {
		return v
	}
	return buildContext(c)
}

// SenderID is the conversation key of an update: the chat the reply goes to.
func SenderID(c tele.Context) string {
	if chat := c.Chat(); chat != nil {
		return strconv.FormatInt(chat.ID, 10)
	}
	if user := c.Sender(); user != nil {
		return strconv.FormatInt(user.ID, 10)
	}
	return ""
}

func buildContext(c tele.Context) context.Context {
	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	ctx := logger.WithRID(context.Background(), logger.BuildRID(upd.ID, chatID, userID))
	ctx = logger.WithSender(ctx, platform, SenderID(c))
	return logger.WithLogger(ctx, logger.TG)
}

// LoggerMiddleware builds the per-update context and logs its receipt.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ctx := buildContext(c)
		c.Set(contextKey, ctx)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.Int("update_id", c.Update().ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}

		err := next(c)
		if err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "update.handled",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
		}
		return err
	}
}
