// AngelaMos | 2026
// core_test.go

package core_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "remote addr", remote: "203.0.113.9:4411", want: "203.0.113.9"},
		{
			name:    "rightmost forwarded entry",
			remote:  "10.0.0.2:80",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:    "mapped ipv6 forwarded",
			remote:  "10.0.0.2:80",
			headers: map[string]string{"X-Forwarded-For": "::ffff:198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:    "real ip when forwarded is junk",
			remote:  "10.0.0.2:80",
			headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "192.0.2.1"},
			want:    "192.0.2.1",
		},
		{name: "ipv6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, core.ClientIP(r))
		})
	}
}

func TestNormalizeIP(t *testing.T) {
	assert.Equal(t, "10.1.2.3", core.NormalizeIP(" ::ffff:10.1.2.3 "))
	assert.Equal(t, "fe80::1", core.NormalizeIP("fe80::1%eth0"))
	assert.Empty(t, core.NormalizeIP("not-an-ip"))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, core.RoleAdmin, core.ParseRole(" ADMIN "))
	assert.Equal(t, core.RoleUser, core.ParseRole("user"))
	assert.Equal(t, core.RoleUser, core.ParseRole("superuser"))
	assert.Equal(t, core.RoleUser, core.ParseRole(""))

	assert.True(t, core.Role("Admin").IsAdmin())
	assert.Equal(t, "user", core.Role("moderator").String())
}

func TestRoleScan(t *testing.T) {
	var r core.Role
	require.NoError(t, r.Scan([]byte("admin")))
	assert.Equal(t, core.RoleAdmin, r)

	require.NoError(t, r.Scan(nil))
	assert.Equal(t, core.RoleUser, r)

	assert.Error(t, r.Scan(42))

	v, err := core.Role("ADMIN").Value()
	require.NoError(t, err)
	assert.Equal(t, "admin", v)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", core.NormalizeEmail("  Ana@Example.COM "))
}

type retryAfter struct{ seconds int }

func (e retryAfter) Error() string          { return "blocked" }
func (e retryAfter) RetryAfterSeconds() int { return e.seconds }

func TestTooManyAttempts(t *testing.T) {
	rec := httptest.NewRecorder()
	core.TooManyAttempts(rec, retryAfter{seconds: 90})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	core.TooManyAttempts(rec, core.ErrTooManyTries)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestJSONErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	core.JSONError(rec, errors.New("pq: relation users does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func newMockTx(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestInTxCommits(t *testing.T) {
	db, mock := newMockTx(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := core.InTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "DELETE FROM sessions")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock := newMockTx(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := core.InTx(context.Background(), db, func(*sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMockTx(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = core.InTx(context.Background(), db, func(*sqlx.Tx) error { panic("boom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgErrorHelpers(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	name, ok := core.UniqueViolation(errors.Join(errors.New("insert"), unique))
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", name)

	_, ok = core.UniqueViolation(errors.New("other"))
	assert.False(t, ok)

	assert.True(t, core.ForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, core.ForeignKeyViolation(unique))
}
