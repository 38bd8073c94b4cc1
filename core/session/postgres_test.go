package session

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, ttl time.Duration) (*PostgresStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := NewPostgresStore(sqlx.NewDb(db, "postgres"), ttl)
	st.now = func() time.Time { return now }
	return st, mock, now
}

func TestPostgresStoreGet(t *testing.T) {
	st, mock, now := newMockStore(t, time.Hour)
	cols := []string{"sender_id", "step", "target_language", "updated_at"}
	cutoff := now.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(pgTouchSession)).WithArgs("psid-1", now, cutoff).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("psid-1", "awaiting_text", "es", now))
	got, ok, err := st.Get(context.Background(), "psid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, AwaitingText{TargetLanguage: "es"}, got.State)
	assert.Equal(t, now, got.UpdatedAt, "a read counts as activity")

	mock.ExpectQuery(regexp.QuoteMeta(pgTouchSession)).WithArgs("psid-2", now, cutoff).
		WillReturnRows(sqlmock.NewRows(cols))
	_, ok, err = st.Get(context.Background(), "psid-2")
	require.NoError(t, err)
	assert.False(t, ok, "rows older than the ttl read as absent")

	mock.ExpectQuery(regexp.QuoteMeta(pgTouchSession)).WithArgs("psid-4", now, cutoff).
		WillReturnError(errors.New("conn reset"))
	_, _, err = st.Get(context.Background(), "psid-4")
	assert.ErrorContains(t, err, "conn reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetWithoutTTL(t *testing.T) {
	st, mock, now := newMockStore(t, 0)
	cols := []string{"sender_id", "step", "target_language", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(pgSelectSession)).WithArgs("psid-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("psid-1", "awaiting_language", nil, now.Add(-72*time.Hour)))
	got, ok, err := st.Get(context.Background(), "psid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, AwaitingLanguage{}, got.State)

	mock.ExpectQuery(regexp.QuoteMeta(pgSelectSession)).WithArgs("psid-3").WillReturnError(sql.ErrNoRows)
	_, ok, err = st.Get(context.Background(), "psid-3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePutDeletePrune(t *testing.T) {
	st, mock, now := newMockStore(t, 30*time.Minute)
	lang := "de"

	mock.ExpectExec(regexp.QuoteMeta(pgUpsertSession)).
		WithArgs("psid-1", StepAwaitingText, &lang, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, st.Put(context.Background(), Session{SenderID: "psid-1", State: AwaitingText{TargetLanguage: "de"}}))

	mock.ExpectExec(regexp.QuoteMeta(pgDeleteSession)).WithArgs("psid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, st.Delete(context.Background(), "psid-1"))

	mock.ExpectExec(regexp.QuoteMeta(pgPruneSessions)).WithArgs(now.Add(-30 * time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	removed, err := st.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	assert.ErrorIs(t, st.Put(context.Background(), Session{SenderID: "psid-1"}), ErrCorruptRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}
