package telegram

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/lingobot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10

// BuildPoller returns a Telebot poller for the configured run mode.
func BuildPoller(cfg coreconfig.TelegramConfig) tele.Poller {
	if strings.EqualFold(cfg.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.WebhookListen, cfg.WebhookPort),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg)}
}

func longPollTimeout(cfg coreconfig.TelegramConfig) time.Duration {
	sec := cfg.LongPollTimeoutSeconds
	if sec <= 0 {
		sec = defaultLongPollTimeout
	}
	return time.Duration(sec) * time.Second
}
