package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func drain(t *testing.T, aw *asyncWriter) {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithSender(ctx, "messenger", "psid-7")

	log := slog.New(handler).With("component", "conversation")
	LogEvent(ctx, log, slog.LevelInfo, "transition",
		slog.String("status", "ok"),
		slog.String("outcome", "prompted"),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=conversation", "event=transition", "status=ok", "rid=rid-123", "platform=messenger", "sender_id=psid-7"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
	if !strings.Contains(line, "outcome=prompted") {
		t.Fatalf("expected domain outcome to survive normalization, got %s", line)
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	ctx := WithRID(context.Background(), "rid-json")

	log := slog.New(handler).With("component", "translate")
	LogEvent(ctx, log, slog.LevelError, "translate.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"translate"`, `"event":"translate.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	rawRID := BuildRID(12, 34, 56)
	ctx := WithRID(context.Background(), rawRID)

	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test", slog.String("status", "ok"))
	drain(t, aw)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"component":"app"`) {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	LogEvent(context.Background(), slog.New(handler), slog.LevelInfo, "x",
		slog.String("outcome", "exploded"),
		slog.Duration("duration", 1500000),
	)
	drain(t, aw)

	line := buf.String()
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome should be dropped, got %s", line)
	}
	if !strings.Contains(line, "duration_ms=2") {
		t.Fatalf("expected duration normalized to ms, got %s", line)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("he\x00llo\u200b world", 5); got != "hello" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("abc", 0); got != "" {
		t.Fatalf("SanitizeLimit with zero max = %q", got)
	}
}

func TestStructuredHandlerRedactsSecrets(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	slog.New(handler).Info("send",
		slog.String("access_token", "EAAB-secret"),
		slog.Group("translator", slog.String("api_key", "k-123")),
		slog.String("err", `Post "https://graph.facebook.com/v12.0/me/messages?access_token=EAAB-secret": EOF`),
		slog.String("text", strings.Repeat("x", 100)),
	)
	drain(t, aw)

	line := buf.String()
	for _, secret := range []string{"EAAB-secret", "k-123"} {
		if strings.Contains(line, secret) {
			t.Fatalf("secret %q leaked: %s", secret, line)
		}
	}
	if !strings.Contains(line, "translator.api_key=***") {
		t.Fatalf("expected grouped secret to be masked, got %s", line)
	}
	if !strings.Contains(line, "text="+strings.Repeat("x", maxTextRunes)+" ") &&
		!strings.HasSuffix(strings.TrimSpace(line), "text="+strings.Repeat("x", maxTextRunes)) {
		t.Fatalf("expected text preview capped at %d runes, got %s", maxTextRunes, line)
	}
}

func TestRedactSecrets(t *testing.T) {
	got := RedactSecrets("https://api.telegram.org/bot123:AA-bb_cc/sendMessage?x=1")
	if got != "https://api.telegram.org/bot***/sendMessage?x=1" {
		t.Fatalf("RedactSecrets = %q", got)
	}
	got = RedactSecrets("POST /translate api_key=abc&q=hi")
	if got != "POST /translate api_key=***&q=hi" {
		t.Fatalf("RedactSecrets = %q", got)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2, 5)
	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 4 {
		t.Fatalf("allowed = %d, want 4", allowed)
	}

	s.Set(0, 0)
	for i := 0; i < 3; i++ {
		if !s.Allow() {
			t.Fatal("disabled sampler must allow every event")
		}
	}

	if num, den := parseRatioSpec("1/10"); num != 1 || den != 10 {
		t.Fatalf("parseRatioSpec(1/10) = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("20"); num != 1 || den != 20 {
		t.Fatalf("parseRatioSpec(20) = %d/%d", num, den)
	}
	if num, den := parseRatioSpec("nope"); num != 0 || den != 0 {
		t.Fatalf("parseRatioSpec(nope) = %d/%d", num, den)
	}
}

func TestAsyncWriterFlushSeesEveryWrite(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	for i := 0; i < 100; i++ {
		if err := aw.Write([]byte("line\n")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(buf.String(), "line\n"); got != 100 {
		t.Fatalf("lines after flush = %d, want 100", got)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}
