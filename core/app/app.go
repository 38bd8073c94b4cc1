// Package app wires the conversation dispatcher to its transports and
// runs them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	"github.com/m3rciful/lingobot/core/conversation"
	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/messenger"
	"github.com/m3rciful/lingobot/core/netutil"
	"github.com/m3rciful/lingobot/core/sender"
	"github.com/m3rciful/lingobot/core/server"
	"github.com/m3rciful/lingobot/core/session"
	"github.com/m3rciful/lingobot/core/telegram"
	"github.com/m3rciful/lingobot/core/translate"

	tele "gopkg.in/telebot.v4"
)

const telegramKeyPrefix = "tg:"

// Options carries the bootstrapped infrastructure.
type Options struct {
	Config *coreconfig.Config
	Store  session.Store
	Pruner session.Pruner
	// NewBot overrides Telegram bot construction in tests.
	NewBot func(coreconfig.TelegramConfig) (*tele.Bot, error)
}

// App is the assembled service.
type App struct {
	cfg    *coreconfig.Config
	pruner session.Pruner
	outbox *sender.Outbox
	inbox  *sender.Outbox
	routes map[string]http.Handler

	bot       *tele.Bot
	tgHandler telegram.EventHandler
	fbHandler *conversation.Dispatcher
}

// New builds every enabled transport around one session store and one outbox.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil || opts.Store == nil {
		return nil, errors.New("app: config and store are required")
	}

	outbox := sender.NewOutbox(sender.Options{
		QueueSize:    cfg.Sender.QueueSize,
		Workers:      cfg.Sender.Workers,
		MaxRetries:   cfg.Sender.MaxRetries,
		RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
	})
	translator := translate.NewClient(
		netutil.BuildHTTPClient(netutil.ClientOptions{
			Timeout:               cfg.Translator.Timeout(),
			ResponseHeaderTimeout: cfg.Translator.Timeout(),
		}),
		cfg.Translator.URL,
		cfg.Translator.APIKey,
	)

	a := &App{
		cfg:    cfg,
		pruner: opts.Pruner,
		outbox: outbox,
		routes: map[string]http.Handler{},
	}

	if cfg.Messenger.Enabled() {
		graph := messenger.NewClient(
			netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: 10 * time.Second}),
			cfg.Messenger.GraphURL,
			cfg.Messenger.APIVersion,
			cfg.Messenger.PageAccessToken,
		)
		d, err := conversation.NewDispatcher(conversation.Options{
			Store:            opts.Store,
			Replier:          messenger.NewReplier(outbox, graph),
			Translator:       translator,
			TranslateTimeout: cfg.Translator.Timeout(),
			Platform:         "messenger",
		})
		if err != nil {
			outbox.Close()
			return nil, err
		}
		a.fbHandler = d
		// Store calls on either side of the translation share the job deadline.
		a.inbox = sender.NewOutbox(sender.Options{
			QueueSize:   cfg.Messenger.QueueSize,
			Workers:     cfg.Messenger.Workers,
			MaxDuration: cfg.Translator.Timeout() + 5*time.Second,
		})
		a.routes[cfg.HTTP.WebhookPath] = messenger.NewWebhook(messenger.WebhookOptions{
			VerifyToken: cfg.Messenger.VerifyToken,
			AppSecret:   cfg.Messenger.AppSecret,
			Handler:     d,
			Queue:       a.inbox,
		})
	}

	if cfg.Telegram.Enabled() {
		newBot := opts.NewBot
		if newBot == nil {
			newBot = telegram.NewBot
		}
		bot, err := newBot(cfg.Telegram)
		if err != nil {
			a.Close()
			return nil, err
		}
		d, err := conversation.NewDispatcher(conversation.Options{
			Store:            session.WithPrefix(opts.Store, telegramKeyPrefix),
			Replier:          telegram.NewReplier(outbox, bot),
			Translator:       translator,
			TranslateTimeout: cfg.Translator.Timeout(),
			Platform:         "telegram",
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.bot, a.tgHandler = bot, d
	}

	return a, nil
}

// Handler returns the inbound HTTP handler.
func (a *App) Handler() http.Handler {
	return server.NewHandler(a.routes)
}

// Close finishes queued inbound events, then flushes the replies they
// produced.
func (a *App) Close() {
	if a.inbox != nil {
		a.inbox.Close()
	}
	a.outbox.Close()
}

// Run serves all transports until ctx is done or one of them fails.
// Queued replies are flushed before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(name string, err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() {
			runErr = fmt.Errorf("%s: %w", name, err)
			cancel()
		})
	}

	if a.pruner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.RunJanitor(ctx, a.pruner, a.cfg.Session.PruneInterval())
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		fail("http", server.Run(ctx, server.Options{
			Addr:         a.cfg.HTTP.Addr(),
			ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSeconds) * time.Second,
			WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSeconds) * time.Second,
			Routes:       a.routes,
		}))
	}()

	if a.bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("telegram", telegram.Run(ctx, a.bot, telegram.RunOptions{
				Handler:        a.tgHandler,
				Middlewares:    telegram.DefaultMiddlewares(a.cfg),
				CleanupWebhook: a.cfg.Telegram.RunMode == coreconfig.RunModeLongpoll,
			}))
		}()
	}

	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Bool("messenger", a.fbHandler != nil),
		slog.Bool("telegram", a.bot != nil),
	)

	<-ctx.Done()
	logger.L.With("component", "app").Info("shutting down...", slog.String("event", "shutdown"))
	wg.Wait()
	a.Close()
	logger.L.With("component", "app").Info("outbox drained",
		slog.String("event", "shutdown"),
		slog.Uint64("sent", a.outbox.SentCount()),
		slog.Uint64("failed", a.outbox.ErrorCount()),
	)
	return runErr
}
