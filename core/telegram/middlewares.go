package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	"github.com/m3rciful/lingobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// DefaultMiddlewares returns recover, the optional per-chat rate limit and
// the logging middleware, outermost first. Updates dropped by the rate limit
// never reach the dispatcher, so they cannot advance a conversation.
func DefaultMiddlewares(cfg *coreconfig.Config) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		limit := middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		})
		chain = append(chain, Middleware{Name: "rate_limit", Use: limit})
	}
	return append(chain, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
}
