package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/lingobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	OnLimited tele.HandlerFunc
	// Now overrides the clock in tests.
	Now func() time.Time
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between messages from the same chat. Limited updates are dropped.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		lastSeen   = make(map[string]time.Time)
		lastSeenMu sync.Mutex
	)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := SenderID(c)
			if id == "" || opts.Interval <= 0 {
				return next(c)
			}

			t := now()
			lastSeenMu.Lock()
			if last, ok := lastSeen[id]; ok && t.Sub(last) < opts.Interval {
				lastSeenMu.Unlock()
				logger.LogEvent(ContextFrom(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
					slog.String("status", "rate_limited"),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			lastSeen[id] = t
			for k, seen := range lastSeen {
				if t.Sub(seen) > 10*opts.Interval {
					delete(lastSeen, k)
				}
			}
			lastSeenMu.Unlock()
			return next(c)
		}
	}
}
