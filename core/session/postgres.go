package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/lingobot/core/logger"
)

const (
	pgSelectSession = `SELECT sender_id, step, target_language, updated_at FROM sessions WHERE sender_id = $1`
	pgTouchSession  = `UPDATE sessions SET updated_at = $2 WHERE sender_id = $1 AND updated_at >= $3
RETURNING sender_id, step, target_language, updated_at`
	pgUpsertSession = `INSERT INTO sessions (sender_id, step, target_language, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (sender_id) DO UPDATE SET step = EXCLUDED.step, target_language = EXCLUDED.target_language, updated_at = EXCLUDED.updated_at`
	pgDeleteSession = `DELETE FROM sessions WHERE sender_id = $1`
	pgPruneSessions = `DELETE FROM sessions WHERE updated_at < $1`
)

type pgRow struct {
	SenderID string `db:"sender_id"`
	record
	UpdatedAt time.Time `db:"updated_at"`
}

// PostgresStore persists sessions in the sessions table.
type PostgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore wraps an open connection. A positive ttl hides sessions
// idle for longer than it; Prune removes them. Get counts as activity.
func NewPostgresStore(db *sqlx.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

// Get loads the session of senderID. With a ttl the row's updated_at moves
// to now in the same statement, and rows past the ttl read as absent.
func (p *PostgresStore) Get(ctx context.Context, senderID string) (Session, bool, error) {
	var (
		row pgRow
		err error
	)
	if p.ttl > 0 {
		now := p.now().UTC()
		err = p.db.GetContext(ctx, &row, pgTouchSession, senderID, now, now.Add(-p.ttl))
	} else {
		err = p.db.GetContext(ctx, &row, pgSelectSession, senderID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("select session: %w", err)
	}
	st, err := decodeState(row.record)
	if err != nil {
		return Session{}, false, err
	}
	return Session{SenderID: row.SenderID, State: st, UpdatedAt: row.UpdatedAt}, true, nil
}

// Put upserts s.
func (p *PostgresStore) Put(ctx context.Context, s Session) error {
	rec, err := encodeState(s.State)
	if err != nil {
		return err
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = p.now()
	}
	if _, err := p.db.ExecContext(ctx, pgUpsertSession, s.SenderID, rec.Step, rec.TargetLanguage, updated.UTC()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes the session of senderID.
func (p *PostgresStore) Delete(ctx context.Context, senderID string) error {
	if _, err := p.db.ExecContext(ctx, pgDeleteSession, senderID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune deletes sessions idle for longer than the ttl.
func (p *PostgresStore) Prune(ctx context.Context) (int, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	start := time.Now()
	res, err := p.db.ExecContext(ctx, pgPruneSessions, p.now().Add(-p.ttl).UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.SESS.Info("sessions pruned",
			slog.String("event", "session.prune"),
			slog.String("backend", "postgres"),
			slog.Int64("removed", n),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return int(n), nil
}

