package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/lingobot/core/app"
	"github.com/m3rciful/lingobot/core/bootstrap"
	coreconfig "github.com/m3rciful/lingobot/core/config"
	coredatabase "github.com/m3rciful/lingobot/core/database"
	"github.com/m3rciful/lingobot/core/logger"
)

// DefaultConfigEnvVar names the variable holding the YAML config path.
const DefaultConfigEnvVar = "CONFIG_PATH"

// Options describe how to load configuration, bootstrap the app, and run it.
// Nil funcs fall back to the production implementations.
type Options struct {
	ConfigPath string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error)
	ShutdownLogger func() error
}

// ResolveConfigPath prefers an explicit path, then $CONFIG_PATH. An empty
// result means environment-only configuration.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(DefaultConfigEnvVar)
}

// Run loads configuration, bootstraps the session backend, and serves until
// SIGINT or SIGTERM.
func Run(opts Options) error {
	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = coreconfig.Load
	}
	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}

	cfgPath := ResolveConfigPath(opts.ConfigPath)
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	infra, err := boot(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer func() {
		if err := infra.Close(); err != nil {
			logger.L.With("component", "app").Warn("close failed",
				slog.String("event", "shutdown"),
				slog.String("err", err.Error()),
			)
		}
	}()

	application, err := app.New(app.Options{Config: cfg, Store: infra.Store, Pruner: infra.Pruner})
	if err != nil {
		return fmt.Errorf("cmd: app build failed: %w", err)
	}
	logger.L.With("component", "app").Info("app built",
		slog.String("event", "startup"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)
	return application.Run(ctx)
}

// Migrate applies database migrations for the postgres session backend.
func Migrate(configPath string) error {
	cfg, err := coreconfig.LoadDatabase(ResolveConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return coredatabase.RunMigrations(ctx, cfg.Database)
}
