package sender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/lingobot/core/logger"
)

// DeliverFunc sends text to a platform recipient.
type DeliverFunc func(ctx context.Context, recipientID, text string) error

// Replier adapts a DeliverFunc to fire-and-forget replies on an Outbox.
type Replier struct {
	outbox   *Outbox
	platform string
	deliver  DeliverFunc
}

// NewReplier binds deliver to outbox.
func NewReplier(outbox *Outbox, platform string, deliver DeliverFunc) *Replier {
	return &Replier{outbox: outbox, platform: platform, deliver: deliver}
}

// Reply queues the message and returns at once. A saturated or closed
// queue drops the message.
func (r *Replier) Reply(ctx context.Context, recipientID, text string) {
	err := r.outbox.Enqueue(ctx, r.platform+".send", recipientID, func(ctx context.Context) error {
		return r.deliver(ctx, recipientID, text)
	})
	if err == nil {
		return
	}
	status := "dropped"
	if errors.Is(err, ErrQueueClosed) {
		status = "closed"
	}
	logger.Warn(ctx, "sender", "send.enqueue",
		slog.String("status", "fail"),
		slog.String("reason", status),
		slog.String("op", r.platform+".send"),
		slog.String("err", err.Error()),
	)
}
