package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey int

const (
	metaKey ctxKey = iota
	loggerKey
)

// eventMeta identifies the inbound event being processed. It is stored by
// value, so every With* call derives a new context without mutating parents.
type eventMeta struct {
	rid      string
	platform string
	sender   string
	handler  string
}

func metaFrom(ctx context.Context) eventMeta {
	if ctx == nil {
		return eventMeta{}
	}
	m, _ := ctx.Value(metaKey).(eventMeta)
	return m
}

func withMeta(ctx context.Context, update func(*eventMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, metaKey, m)
}

// WithLogger stores log in ctx for FromContext.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches a request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *eventMeta) { m.rid = rid })
}

func RIDFrom(ctx context.Context) string { return metaFrom(ctx).rid }

// WithSender attaches the platform and sender id of an inbound event. Empty
// values leave the existing ones in place.
func WithSender(ctx context.Context, platform, senderID string) context.Context {
	return withMeta(ctx, func(m *eventMeta) {
		if platform != "" {
			m.platform = platform
		}
		if senderID != "" {
			m.sender = senderID
		}
	})
}

func SenderFrom(ctx context.Context) string   { return metaFrom(ctx).sender }
func PlatformFrom(ctx context.Context) string { return metaFrom(ctx).platform }

// WithHandler names the transport handler processing the event.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *eventMeta) { m.handler = handler })
}

func HandlerFrom(ctx context.Context) string { return metaFrom(ctx).handler }

// Sanitize drops control and format runes except newline and tab.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID builds the Telegram correlation id updateID:chatID:senderID.
func BuildRID(updateID int, chatID, senderID int64) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(updateID))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(chatID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(senderID, 10))
	return b.String()
}

// CompactRID rewrites a BuildRID value as dot-separated base36 segments.
// Anything else, such as a webhook UUID, is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
