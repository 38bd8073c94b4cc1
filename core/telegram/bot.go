// Package telegram is an optional second transport. Text messages from
// Telegram chats drive the same conversation dispatcher as Messenger.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/netutil"
	"github.com/m3rciful/lingobot/core/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	platform      = "telegram"
	retryAttempts = 3
)

// NewBot creates the bot client. It calls getMe to validate the token.
func NewBot(cfg coreconfig.TelegramConfig) (*tele.Bot, error) {
	poll := longPollTimeout(cfg)
	settings := tele.Settings{
		Token:  cfg.Token,
		Poller: BuildPoller(cfg),
		Client: netutil.BuildHTTPClient(netutil.ClientOptions{
			Timeout:               poll + 20*time.Second,
			ResponseHeaderTimeout: poll + 5*time.Second,
			Retries:               retryAttempts,
		}),
	}

	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.TG.Info("bot ready",
		slog.String("event", "tg.init"),
		slog.String("mode", cfg.RunMode),
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return bot, nil
}

// Sender is the subset of *tele.Bot used for replies.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Deliverer returns a sender.DeliverFunc posting plain text to a chat id.
// telebot has no per-call context, so an expired ctx skips the send.
func Deliverer(bot Sender) sender.DeliverFunc {
	return func(ctx context.Context, recipientID, text string) error {
		chatID, err := strconv.ParseInt(recipientID, 10, 64)
		if err != nil {
			return fmt.Errorf("telegram: bad chat id %q: %w", recipientID, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err = bot.Send(tele.ChatID(chatID), text)
		return err
	}
}

// NewReplier returns a fire-and-forget replier that sends through bot.
func NewReplier(outbox *sender.Outbox, bot Sender) *sender.Replier {
	return sender.NewReplier(outbox, platform, Deliverer(bot))
}
