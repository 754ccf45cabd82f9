// AngelaMos | 2026
// handler_test.go

package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/arphoto/backend/internal/auth"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
)

func newRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	h := auth.NewHandler(f.svc, f.cfg)
	h.RegisterRoutes(r, middleware.Authenticator(f.svc, f.cfg.CookieName))
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = clientIP + ":54321"
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginHandlerRejectsMalformedInput(t *testing.T) {
	h := newRouter(newFixture(t))

	cases := map[string]string{
		"invalid json":  `{"email":`,
		"missing email": `{"password":"x"}`,
		"bad email":     `{"email":"nope","password":"x"}`,
		"too long":      `{"email":"a@b.co","password":"` + strings.Repeat("x", 256) + `"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, h, "/auth/login", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["success"])
		})
	}
}

func TestLoginHandlerFlow(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	rec := postJSON(t, h, "/auth/login", `{"email":"ana@example.com","password":"bad-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid email or password", body["message"])
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	rec = postJSON(t, h, "/auth/login", `{"email":"ana@example.com","password":"`+userPassword+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	session := cookies[0]
	assert.Equal(t, f.cfg.CookieName, session.Name)
	assert.True(t, session.HttpOnly)

	rec = postJSON(t, h, "/auth/logout", ``, session)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h, "/auth/logout", ``, session)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", decodeBody(t, rec)["code"])
}

func TestLoginHandlerBlocked(t *testing.T) {
	h := newRouter(newFixture(t))

	for i := 0; i < 5; i++ {
		rec := postJSON(t, h, "/auth/login", `{"email":"ana@example.com","password":"bad-password"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := postJSON(t, h, "/auth/login", `{"email":"ana@example.com","password":"`+userPassword+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOO_MANY_ATTEMPTS", decodeBody(t, rec)["code"])
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
}

func TestRegisterHandler(t *testing.T) {
	h := newRouter(newFixture(t))

	rec := postJSON(t, h, "/auth/register", `{"pseudo":"carla","email":"carla@example.com","password":"long-enough-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = postJSON(t, h, "/auth/register", `{"pseudo":"carla2","email":"carla@example.com","password":"long-enough-pass"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE", decodeBody(t, rec)["code"])

	rec = postJSON(t, h, "/auth/register", `{"pseudo":"c","email":"c@example.com","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWKSHandler(t *testing.T) {
	tm, _ := newTokenManager(t)

	rec := httptest.NewRecorder()
	tm.GetJWKSHandler()(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	keys, ok := body["keys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 1)

	key, ok := keys[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EC", key["kty"])
	assert.Equal(t, tm.GetKeyID(), key["kid"])
	assert.NotContains(t, key, "d")
}
