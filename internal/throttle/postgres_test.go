// AngelaMos | 2026
// postgres_test.go

package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/throttle"
)

const (
	selectAttemptQuery = `SELECT key, purpose, count, last_attempt\s+FROM attempt_records\s+WHERE key = \$1 AND purpose = \$2`
	upsertAttemptQuery = `INSERT INTO attempt_records \(key, purpose, count, last_attempt\)`
	deleteAttemptQuery = `DELETE FROM attempt_records WHERE key = \$1 AND purpose = \$2`
	deleteStaleQuery   = `DELETE FROM attempt_records WHERE last_attempt <= \$1`
)

var attemptColumns = []string{"key", "purpose", "count", "last_attempt"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestPostgresGetMissingRecord(t *testing.T) {
	db, mock := newMockDB(t)
	store := throttle.NewPostgresStore(db)

	mock.ExpectQuery(selectAttemptQuery).
		WithArgs(testKey, "login").
		WillReturnRows(sqlmock.NewRows(attemptColumns))

	_, err := store.Get(context.Background(), testKey, throttle.PurposeLogin)
	assert.ErrorIs(t, err, throttle.ErrNoRecord)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRecord(t *testing.T) {
	db, mock := newMockDB(t)
	store := throttle.NewPostgresStore(db)
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(selectAttemptQuery).
		WithArgs(testKey, "reset").
		WillReturnRows(sqlmock.NewRows(attemptColumns).AddRow(testKey, "reset", 3, last))

	rec, err := store.Get(context.Background(), testKey, throttle.PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Count)
	assert.Equal(t, throttle.PurposeReset, rec.Purpose)
	assert.True(t, rec.LastAttempt.Equal(last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementPassesStaleCutoff(t *testing.T) {
	db, mock := newMockDB(t)
	store := throttle.NewPostgresStore(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(upsertAttemptQuery).
		WithArgs(testKey, "login", now, now.Add(-blockWindow)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.Increment(context.Background(), testKey, throttle.PurposeLogin, now, blockWindow)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteAndPurge(t *testing.T) {
	db, mock := newMockDB(t)
	store := throttle.NewPostgresStore(db)
	cutoff := time.Date(2026, 3, 1, 11, 45, 0, 0, time.UTC)

	mock.ExpectExec(deleteAttemptQuery).
		WithArgs(testKey, "register").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteStaleQuery).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, store.Delete(context.Background(), testKey, throttle.PurposeRegister))

	n, err := store.DeleteStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
