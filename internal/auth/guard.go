package auth

import (
	"errors"
	"net/http"

	"github.com/ignite/leadfunnel/internal/domain"
)

// State is the page-level session guard state.
type State int

const (
	StateChecking State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// Guard resolves once from checking to authenticated or unauthenticated.
type Guard struct {
	state   State
	session *domain.Session
	err     error
}

// NewGuard returns a guard in the checking state.
func NewGuard() *Guard { return &Guard{state: StateChecking} }

// Resolve settles the guard from a session lookup. Only the first call
// changes state. A lookup error other than ErrNoSession also leaves the
// guard unauthenticated and is kept in Err.
func (g *Guard) Resolve(sess *domain.Session, err error) State {
	if g.state != StateChecking {
		return g.state
	}
	if err != nil || sess == nil {
		g.state = StateUnauthenticated
		if err != nil && !errors.Is(err, ErrNoSession) {
			g.err = err
		}
		return g.state
	}
	g.state = StateAuthenticated
	g.session = sess
	return g.state
}

func (g *Guard) State() State             { return g.state }
func (g *Guard) Session() *domain.Session { return g.session }
func (g *Guard) Err() error               { return g.err }

// Check runs the page guard for r. A session already placed in the context
// by RequireSession is reused instead of hitting the store again.
func (am *Manager) Check(r *http.Request) *Guard {
	g := NewGuard()
	if sess := SessionFromContext(r.Context()); sess != nil {
		g.Resolve(sess, nil)
		return g
	}
	g.Resolve(am.SessionFromRequest(r))
	if g.Err() != nil {
		am.log.Error("session lookup failed", "error", g.Err())
	}
	return g
}
