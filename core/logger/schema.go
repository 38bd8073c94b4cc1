package logger

import "strings"

// Closed vocabularies of the status and outcome fields. Unknown statuses
// are lowercased and kept; unknown outcomes are dropped so dashboards only
// ever see conversation results they know.
var (
	statusVocab = vocab("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "dropped")

	outcomeVocab = vocab(
		"ok", "fail", "cancelled", "rate_limited",
		// conversation results
		"ignored", "prompted", "reprompted", "language_set", "translated", "translate_failed",
	)
)

func vocab(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	default:
		return l
	}
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	_, ok := statusVocab[status]
	return status, ok
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	_, ok := outcomeVocab[outcome]
	return outcome, ok && outcome != ""
}

// defaultKeyOrder puts identity first, then the conversation fields, then
// transport and error details. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"platform", "sender_id", "handler",
	"from_state", "to_state", "lang", "outcome", "text_len",
	"op", "backend", "action", "endpoint", "http_code",
	"duration_ms", "count", "removed",
	"mode", "listen", "addr", "public_url", "host", "port", "db",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
}
