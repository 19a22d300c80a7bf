package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadfunnel/internal/domain"
)

func TestGuard_ResolvesOnce(t *testing.T) {
	g := NewGuard()
	assert.Equal(t, StateChecking, g.State())

	assert.Equal(t, StateAuthenticated, g.Resolve(&domain.Session{ID: "s"}, nil))
	assert.Equal(t, StateAuthenticated, g.Resolve(nil, ErrNoSession))
	assert.Equal(t, "s", g.Session().ID)
}

func TestGuard_Unauthenticated(t *testing.T) {
	g := NewGuard()
	assert.Equal(t, StateUnauthenticated, g.Resolve(nil, ErrNoSession))
	assert.NoError(t, g.Err())

	g = NewGuard()
	assert.Equal(t, StateUnauthenticated, g.Resolve(nil, errors.New("redis down")))
	assert.Error(t, g.Err())
	assert.Equal(t, "unauthenticated", g.State().String())
}

func TestRequireSession_RedirectsBeforeHandler(t *testing.T) {
	am, _ := newTestManager(t, testAuthConfig())
	called := false
	h := am.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/files?x=1", nil))
	assert.Equal(t, "/auth/login?next=%2Fadmin%2Ffiles%3Fx%3D1", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")

	assert.False(t, called)
}

func TestRequireSession_PassesSessionToHandler(t *testing.T) {
	am, admins := newTestManager(t, testAuthConfig())
	seedAdmin(t, admins, "admin@example.com", "secret123")
	sess, err := am.SignIn(context.Background(), "admin@example.com", "secret123")
	require.NoError(t, err)
	cookieRec := httptest.NewRecorder()
	require.NoError(t, am.SetSessionCookie(cookieRec, sess))

	var seen *domain.Session
	var state State
	h := am.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		state = am.Check(r).State()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withCookies(cookieRec, "/admin"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, sess.ID, seen.ID)
	assert.Equal(t, StateAuthenticated, state)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/admin/files", SafeNext("/admin/files"))
	assert.Equal(t, "/admin", SafeNext("https://evil.example.com/admin"))
	assert.Equal(t, "/admin", SafeNext("//evil.example.com"))
	assert.Equal(t, "/admin", SafeNext(""))
	assert.Equal(t, "/auth/set-password", SafeNext("/auth/set-password"))
	assert.Equal(t, "/admin", SafeNext("/auth/set-password/../../x"))
}
