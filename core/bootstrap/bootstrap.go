package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	coredatabase "github.com/m3rciful/lingobot/core/database"
	"github.com/m3rciful/lingobot/core/logger"
	"github.com/m3rciful/lingobot/core/session"
)

// Options control the bootstrap pipeline. Nil funcs fall back to the
// production implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
	OpenRedis  func(coreconfig.RedisConfig) redis.UniversalClient
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store session.Store
	// Pruner is set for backends that need a periodic sweep.
	Pruner session.Pruner

	closers []func() error
}

// Close releases backend connections.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run initializes the logger and the configured session backend. The
// postgres backend is migrated before use.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	switch cfg.Session.Backend {
	case coreconfig.BackendPostgres:
		db, err := connectPostgres(ctx, opts)
		if err != nil {
			return nil, err
		}
		store := session.NewPostgresStore(db, cfg.Session.TTL())
		res.Store, res.Pruner = store, store
		res.closers = append(res.closers, db.Close)
	case coreconfig.BackendRedis:
		open := opts.OpenRedis
		if open == nil {
			open = OpenRedis
		}
		rdb := open(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("bootstrap: redis ping failed: %w", err)
		}
		res.Store = session.NewRedisStore(rdb, cfg.Redis.KeyPrefix, cfg.Session.TTL())
		res.closers = append(res.closers, rdb.Close)
	default:
		store := session.NewMemoryStore(session.MemoryConfig{
			TTL:         cfg.Session.TTL(),
			MaxSessions: cfg.Session.MaxSessions,
		})
		res.Store, res.Pruner = store, store
	}

	logger.SESS.Info("session store ready",
		slog.String("event", "session.init"),
		slog.String("backend", cfg.Session.Backend),
		slog.Int("ttl_seconds", cfg.Session.TTLSeconds),
	)
	return res, nil
}

func connectPostgres(ctx context.Context, opts Options) (*sqlx.DB, error) {
	dbCfg := opts.Config.Database

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, dbCfg); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return db, nil
}

// OpenRedis builds a client for the redis session backend.
func OpenRedis(cfg coreconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
