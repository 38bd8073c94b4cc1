package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/lingobot/core/config"
	"github.com/m3rciful/lingobot/core/logger"
)

const readyTimeout = 30 * time.Second

// migrationFile is one *.up.sql file of the migrations directory.
type migrationFile struct {
	name    string
	version uint64
}

// migrationSet is the sorted list of up migrations found on disk.
type migrationSet []migrationFile

func loadMigrationSet(dir string) migrationSet {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var set migrationSet
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		set = append(set, migrationFile{name: name, version: parseVersion(name)})
	}
	slices.SortFunc(set, func(a, b migrationFile) int {
		if c := cmp.Compare(a.version, b.version); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return set
}

// between counts files with from < version <= to.
func (s migrationSet) between(from, to uint64) int {
	n := 0
	for _, f := range s {
		if f.version > from && f.version <= to {
			n++
		}
	}
	return n
}

func (s migrationSet) latest() uint64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].version
}

func (s migrationSet) names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.name
	}
	return out
}

// parseVersion reads the numeric prefix golang-migrate uses for ordering.
func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// RunMigrations waits for Postgres and applies every pending migration from
// cfg.MigrationsDir. An up-to-date schema is not an error.
func RunMigrations(ctx context.Context, cfg coreconfig.DatabaseConfig) error {
	if err := WaitForPostgres(ctx, DSN(cfg), readyTimeout); err != nil {
		logger.MIG.Error("db not ready", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("database not ready: %w", err)
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	set := loadMigrationSet(dir)

	m, err := migrate.New("file://"+dir, URL(cfg))
	if err != nil {
		logger.MIG.Error("init failed", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verr)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix it with the migrate CLI before starting", from)
	}

	preview, truncated := logger.SummarizeStrings(set.names(), 6)
	logger.MIG.Info("migrations resolved",
		slog.String("event", "resolve"),
		slog.String("path", dir),
		slog.Uint64("from_ver", uint64(from)),
		slog.Int("pending", set.between(uint64(from), set.latest())),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}

	to, _, _ := m.Version()
	logger.MIG.Info("migrations applied",
		slog.String("event", "summary"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("count", set.between(uint64(from), uint64(to))),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}
