// AngelaMos | 2026
// user_test.go

package user_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/auth"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
	"github.com/carterperez-dev/arphoto/backend/internal/user"
)

var (
	userColumns = []string{"id", "pseudo", "email", "password_hash", "role", "created_at", "updated_at"}
	joined      = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestCreateNormalizesEmail(t *testing.T) {
	db, mock := newMockDB(t)
	svc := user.NewService(user.NewRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("ana", "ana@example.com", "hash", "user").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(11), joined, joined))

	info, err := svc.Create(context.Background(), "ana", " Ana@Example.com ", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.ID)
	assert.Equal(t, "ana@example.com", info.Email)
	assert.Equal(t, core.RoleUser, info.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicates(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{constraint: "users_email_key", want: auth.ErrEmailExists},
		{constraint: "users_pseudo_key", want: auth.ErrPseudoExists},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := user.NewService(user.NewRepository(db))

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := svc.Create(context.Background(), "ana", "ana@example.com", "hash")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrDuplicateKey)
		})
	}
}

func TestGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	svc := user.NewService(user.NewRepository(db))

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(11), "ana", "ana@example.com", "hash", "ADMIN", joined, joined))

	info, err := svc.GetByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, info.Role)
	assert.Equal(t, "hash", info.PasswordHash)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err = svc.GetByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdatePasswordMissingUser(t *testing.T) {
	db, mock := newMockDB(t)
	svc := user.NewService(user.NewRepository(db))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(int64(404), "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdatePassword(context.Background(), 404, "newhash")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListEscapesSearch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := user.NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs(`%50\%\_off%`, "admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(`%50\%\_off%`, "admin", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pseudo", "email", "role", "created_at", "updated_at"}).
			AddRow(int64(1), "root", "root@example.com", "admin", joined, joined))

	users, total, err := repo.List(context.Background(), user.ListUsersParams{
		Search:   "50%_off",
		Role:     "Admin",
		PageSize: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())
}

func TestUpdateUserRoleRejectsUnknown(t *testing.T) {
	db, _ := newMockDB(t)
	svc := user.NewService(user.NewRepository(db))

	_, err := svc.UpdateUserRole(context.Background(), 1, "owner")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

type staticVerifier map[string]*middleware.SessionClaims

func (v staticVerifier) VerifySession(
	_ context.Context,
	token string,
) (*middleware.SessionClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, core.ErrTokenInvalid
}

func newRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newMockDB(t)
	h := user.NewHandler(user.NewService(user.NewRepository(db)))
	authenticator := middleware.Authenticator(staticVerifier{
		"member": {SessionID: "s1", UserID: 11, Role: core.RoleUser},
		"root":   {SessionID: "s2", UserID: 1, Role: core.RoleAdmin},
	}, "arphoto_session")

	r := chi.NewRouter()
	h.RegisterRoutes(r, authenticator)
	h.RegisterAdminRoutes(r, authenticator, middleware.RequireAdmin)
	return r, mock
}

func TestGetMeHandler(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(11), "ana", "ana@example.com", "hash", "user", joined, joined))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer member")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"success": true,
		"user": {
			"id": 11,
			"pseudo": "ana",
			"email": "ana@example.com",
			"role": "user",
			"created_at": "2026-03-14T09:00:00Z"
		}
	}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/users/11/role",
		strings.NewReader(`{"role":"admin"}`))
	req.Header.Set("Authorization", "Bearer member")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/admin/users/11/role",
		strings.NewReader(`{"role":"owner"}`))
	req.Header.Set("Authorization", "Bearer root")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
