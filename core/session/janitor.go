package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/lingobot/core/logger"
)

// RunJanitor calls p.Prune every interval until ctx is done.
func RunJanitor(ctx context.Context, p Pruner, interval time.Duration) {
	if p == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := p.Prune(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.SESS.Warn("prune failed",
					slog.String("event", "session.prune"),
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			if removed > 0 && logger.ShouldSampleDebug() {
				logger.SESS.Debug("prune tick",
					slog.String("event", "session.prune"),
					slog.Int("removed", removed),
				)
			}
		}
	}
}
