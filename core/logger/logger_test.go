package logger

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/lingobot/core/config"
)

func TestResolveOptionsDefaults(t *testing.T) {
	opts := resolveOptions(nil)
	if opts.format != formatJSON || opts.level != slog.LevelInfo || opts.profile != "prod" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.sampleNum != 1 || opts.sampleDen != 50 {
		t.Fatalf("default sample = %d/%d", opts.sampleNum, opts.sampleDen)
	}
}

func TestResolveOptionsFromConfig(t *testing.T) {
	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "WARNING",
		Profile:     "Dev",
		KeysOrder:   "ts, event ,,sender_id",
		DebugSample: "3/4",
		Dir:         "/var/log/lingobot",
		File:        "bot.log",
	}}
	opts := resolveOptions(cfg)
	if opts.format != formatKV {
		t.Fatalf("dev profile should default to kv, got %s", opts.format)
	}
	if opts.level != slog.LevelWarn {
		t.Fatalf("level = %v", opts.level)
	}
	if len(opts.keyOrder) != 3 || opts.keyOrder[1] != "event" {
		t.Fatalf("keyOrder = %v", opts.keyOrder)
	}
	if opts.sampleNum != 3 || opts.sampleDen != 4 {
		t.Fatalf("sample = %d/%d", opts.sampleNum, opts.sampleDen)
	}
	if opts.file != filepath.Join("/var/log/lingobot", "bot.log") {
		t.Fatalf("file = %s", opts.file)
	}

	cfg.Logging.Format = "json"
	if got := resolveOptions(cfg).format; got != formatJSON {
		t.Fatalf("explicit json format overridden: %s", got)
	}
}

func TestEventMetaIsolation(t *testing.T) {
	parent := WithRID(context.Background(), "rid-1")
	child := WithSender(parent, "messenger", "psid-9")
	child = WithSender(child, "", "")

	if SenderFrom(parent) != "" {
		t.Fatal("child metadata leaked into parent context")
	}
	if RIDFrom(child) != "rid-1" || PlatformFrom(child) != "messenger" || SenderFrom(child) != "psid-9" {
		t.Fatalf("child meta = %q %q %q", RIDFrom(child), PlatformFrom(child), SenderFrom(child))
	}
	if got := CompactRID(BuildRID(35, 36, 1)); got != "z.10.1" {
		t.Fatalf("CompactRID = %s", got)
	}
	if got := CompactRID("0190c3a4-uuid"); got != "0190c3a4-uuid" {
		t.Fatalf("CompactRID changed a uuid: %s", got)
	}
}
