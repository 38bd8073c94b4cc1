package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/lingobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Handler     EventHandler
	Middlewares []Middleware
	// CleanupWebhook removes a stale webhook before long polling.
	CleanupWebhook bool
}

// Run registers the text route and serves updates until ctx is done.
func Run(ctx context.Context, bot *tele.Bot, opts RunOptions) error {
	if bot == nil || opts.Handler == nil {
		return errors.New("telegram: bot and handler are required")
	}

	if _, polling := bot.Poller.(*tele.LongPoller); polling && opts.CleanupWebhook {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
				slog.String("err", err.Error()),
			)
		} else {
			logger.TG.Info("webhook deleted",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
			)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}
	bot.Handle(tele.OnText, TextHandler(opts.Handler))

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		logger.TG.Info("stopped", slog.String("event", "tg.stop"))
		return nil
	case <-runDone:
		return errors.New("telegram: poller exited")
	}
}
