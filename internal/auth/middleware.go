package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/pkg/httputil"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

type ctxKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// SessionFromContext returns the session stored by RequireSession, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(ctxKey{}).(*domain.Session)
	return sess
}

// RequireSession is the edge guard for the admin namespace. It runs before
// any dashboard handler: JSON endpoints under /admin/api/ get a 401, every
// other path is redirected to the login page.
func (am *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g := NewGuard()
		g.Resolve(am.SessionFromRequest(r))
		if g.Err() != nil {
			am.log.Error("session lookup failed", "error", g.Err())
		}

		if g.State() != StateAuthenticated {
			if strings.HasPrefix(r.URL.Path, "/admin/api/") {
				httputil.Unauthorized(w)
				return
			}
			http.Redirect(w, r, LoginRedirect(r.URL.RequestURI()), http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), g.Session())))
	})
}

// LoginRedirect builds the login URL that returns to next afterwards.
func LoginRedirect(next string) string {
	if next == "" || next == "/admin" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SetPasswordPath is the only non-admin page that requires a session.
const SetPasswordPath = "/auth/set-password"

// SafeNext returns next when it is a local admin path, otherwise /admin.
func SafeNext(next string) string {
	if next == "/admin" || next == SetPasswordPath ||
		strings.HasPrefix(next, "/admin/") || strings.HasPrefix(next, "/admin?") {
		return next
	}
	return "/admin"
}
