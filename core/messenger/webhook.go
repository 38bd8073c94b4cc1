package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/lingobot/core/conversation"
	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/sender"
)

const (
	platform     = "messenger"
	maxBodyBytes = 1 << 20
)

// EventHandler consumes normalized inbound events.
type EventHandler interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Outcome, error)
}

// Queue runs jobs asynchronously, in order per key. *sender.Outbox
// satisfies it.
type Queue interface {
	Enqueue(ctx context.Context, action, key string, run sender.RunFunc) error
}

// WebhookOptions configures the webhook handler.
type WebhookOptions struct {
	VerifyToken string
	// AppSecret enables signature checks on POST when non-empty.
	AppSecret string
	Handler   EventHandler
	// Queue receives decoded events keyed by sender id, so the callback is
	// acknowledged before any translation runs. Nil handles events inline.
	Queue Queue
}

// Webhook serves GET verification and POST event delivery on one path.
type Webhook struct {
	verifyToken string
	appSecret   string
	handler     EventHandler
	queue       Queue
}

// NewWebhook builds the webhook handler.
func NewWebhook(opts WebhookOptions) *Webhook {
	return &Webhook{
		verifyToken: opts.VerifyToken,
		appSecret:   opts.AppSecret,
		handler:     opts.Handler,
		queue:       opts.Queue,
	}
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		wh.verify(w, r)
	case http.MethodPost:
		wh.receive(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (wh *Webhook) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	if mode != "" && token == wh.verifyToken {
		logger.FB.Info("webhook verified", slog.String("event", "webhook.verify"), slog.String("status", "ok"))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	logger.FB.Warn("webhook verification rejected",
		slog.String("event", "webhook.verify"),
		slog.String("status", "fail"),
		slog.Bool("mode_set", mode != ""),
	)
	w.WriteHeader(http.StatusForbidden)
}

func (wh *Webhook) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if wh.appSecret != "" && !validSignature(body, r.Header.Get(signatureHeader), wh.appSecret) {
		logger.FB.Warn("bad signature", slog.String("event", "webhook.receive"), slog.String("status", "fail"))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		logger.FB.Warn("malformed callback",
			slog.String("event", "webhook.receive"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	if cb.Object != "page" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, entry := range cb.Entry {
		for _, ev := range entry.Messaging {
			wh.enqueue(ctx, ev)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "EVENT_RECEIVED")
}

// enqueue hands one event to the queue. A full queue drops the event and
// the callback is still acknowledged.
func (wh *Webhook) enqueue(ctx context.Context, m Messaging) {
	ctx = logger.WithRID(ctx, uuid.Must(uuid.NewV7()).String())
	ctx = logger.WithSender(ctx, platform, m.Sender.ID)
	ctx = logger.WithHandler(ctx, "messenger.webhook")

	if m.Message == nil || m.Message.IsEcho {
		logger.Debug(ctx, "messenger", "event.skip",
			slog.String("outcome", string(conversation.OutcomeIgnored)),
			slog.Bool("echo", m.Message != nil && m.Message.IsEcho),
		)
		return
	}
	if wh.queue == nil {
		wh.dispatch(ctx, m)
		return
	}
	err := wh.queue.Enqueue(ctx, "messenger.event", m.Sender.ID, func(ctx context.Context) error {
		wh.dispatch(ctx, m)
		return nil
	})
	if err != nil {
		logger.Error(ctx, "messenger", "event.enqueue",
			slog.String("status", "dropped"),
			slog.String("err", err.Error()),
		)
	}
}

func (wh *Webhook) dispatch(ctx context.Context, m Messaging) {
	start := time.Now()
	outcome, err := wh.handler.Handle(ctx, conversation.Event{SenderID: m.Sender.ID, Text: m.Message.Text})
	if err != nil {
		status := "fail"
		if errors.Is(err, conversation.ErrMalformedEvent) {
			status = "skip"
		}
		logger.Error(ctx, "messenger", "event.handle",
			slog.String("status", status),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return
	}
	logger.Debug(ctx, "messenger", "event.handle",
		slog.String("status", "ok"),
		slog.String("outcome", string(outcome)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
}
