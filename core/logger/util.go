package logger

import (
	"regexp"
	"strings"
	"time"
)

const redacted = "***"

// secretKeys never reach a sink verbatim.
var secretKeys = map[string]struct{}{
	"token":             {},
	"access_token":      {},
	"page_access_token": {},
	"verify_token":      {},
	"app_secret":        {},
	"api_key":           {},
	"password":          {},
}

var (
	botTokenPattern    = regexp.MustCompile(`bot\d+:[A-Za-z0-9_-]+`)
	accessTokenPattern = regexp.MustCompile(`(access_token|api_key)=[^&\s"]+`)
)

// Status maps an error to the status vocabulary of the logs.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// RoundMS rounds d to whole milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were cut.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	if limit <= 0 {
		return "", true
	}
	return strings.Join(values[:limit], ", "), true
}

// RedactSecrets masks Telegram bot tokens and token query parameters that
// transport errors tend to embed in URLs.
func RedactSecrets(s string) string {
	if s == "" {
		return s
	}
	s = botTokenPattern.ReplaceAllString(s, "bot"+redacted)
	return accessTokenPattern.ReplaceAllString(s, "${1}="+redacted)
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}
