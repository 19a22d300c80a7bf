package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"

	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/pkg/logger"
)

// LinkMailer delivers an emailed login link.
type LinkMailer interface {
	SendLoginLink(ctx context.Context, to, link string) error
}

// Manager handles admin sign-in, sessions and the session cookie.
type Manager struct {
	config       config.AuthConfig
	baseURL      string
	admins       AdminStore
	sessions     SessionStore
	cookies      *securecookie.SecureCookie
	signingKey   []byte
	mailer       LinkMailer
	oauth2Config *oauth2.Config
	userInfoURL  string
	now          func() time.Time
	log          *logger.Logger
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithLinkMailer enables emailed login links.
func WithLinkMailer(m LinkMailer) Option {
	return func(am *Manager) { am.mailer = m }
}

// NewManager creates an authentication manager. An empty session secret
// falls back to a random per-process key, which signs everyone out on
// restart.
func NewManager(cfg config.AuthConfig, baseURL string, admins AdminStore, sessions SessionStore, opts ...Option) *Manager {
	secret := []byte(cfg.SessionSecret)
	log := logger.Named("auth")
	if len(secret) == 0 {
		log.Warn("session_secret not set, using a random key; sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	cookies := securecookie.New(deriveKey(secret, "cookie"), nil)
	cookies.MaxAge(cfg.CookieMaxAge)

	am := &Manager{
		config:     cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		admins:     admins,
		sessions:   sessions,
		cookies:    cookies,
		signingKey: deriveKey(secret, "login-link"),
		now:        time.Now,
		log:        log,
	}
	if cfg.GoogleEnabled() {
		am.oauth2Config = newGoogleConfig(cfg, am.baseURL)
		am.userInfoURL = googleUserInfoURL
	}
	for _, opt := range opts {
		opt(am)
	}
	return am
}

func deriveKey(secret []byte, purpose string) []byte {
	sum := sha256.Sum256(append([]byte(purpose+":"), secret...))
	return sum[:]
}

// generateSessionID creates a random session ID
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (am *Manager) newSession(ctx context.Context, u *domain.AdminUser) (*domain.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	now := am.now()
	sess := &domain.Session{
		ID:        id,
		UserID:    u.ID,
		Email:     u.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(am.config.SessionTTL()),
	}
	if err := am.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	am.log.Info("admin signed in", "email", u.Email)
	return sess, nil
}

// SignIn checks the password and opens a session.
func (am *Manager) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(domain.NormalizeEmail(email))
	u, err := am.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if u == nil || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return am.newSession(ctx, u)
}

// SignUp creates an admin account and signs it in. The password rules are
// checked before anything is written.
func (am *Manager) SignUp(ctx context.Context, email, password, confirm string) (*domain.Session, error) {
	if !am.config.AllowSignup {
		return nil, ErrSignupDisabled
	}
	email = strings.ToLower(domain.NormalizeEmail(email))
	if !domain.ValidEmail(email) {
		return nil, ErrInvalidCredentials
	}
	if !am.domainAllowed(email) {
		return nil, ErrDomainNotAllowed
	}
	if err := ValidateNewPassword(password, confirm, am.config.MinPasswordLength); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &domain.AdminUser{Email: email, PasswordHash: hash}
	if err := am.admins.Create(ctx, u); err != nil {
		return nil, err
	}
	am.log.Info("admin signed up", "email", email)
	return am.newSession(ctx, u)
}

// UpdatePassword sets a new password for the signed-in admin.
func (am *Manager) UpdatePassword(ctx context.Context, sess *domain.Session, password, confirm string) error {
	if sess == nil {
		return ErrNoSession
	}
	if err := ValidateNewPassword(password, confirm, am.config.MinPasswordLength); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := am.admins.UpdatePasswordHash(ctx, sess.UserID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	am.log.Info("admin password updated", "email", sess.Email)
	return nil
}

// SignOut ends the session named by the request cookie. A request without a
// valid cookie is already signed out.
func (am *Manager) SignOut(ctx context.Context, r *http.Request) error {
	id, err := am.sessionID(r)
	if err != nil {
		return nil
	}
	if err := am.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SessionFromRequest returns the session named by the request cookie, or
// ErrNoSession.
func (am *Manager) SessionFromRequest(r *http.Request) (*domain.Session, error) {
	id, err := am.sessionID(r)
	if err != nil {
		return nil, ErrNoSession
	}
	return am.sessions.Get(r.Context(), id)
}

func (am *Manager) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(am.config.CookieName)
	if err != nil {
		return "", err
	}
	var id string
	if err := am.cookies.Decode(am.config.CookieName, cookie.Value, &id); err != nil {
		return "", err
	}
	return id, nil
}

// SetSessionCookie writes the signed session cookie.
func (am *Manager) SetSessionCookie(w http.ResponseWriter, sess *domain.Session) error {
	value, err := am.cookies.Encode(am.config.CookieName, sess.ID)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     am.config.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   am.config.CookieMaxAge,
		HttpOnly: true,
		Secure:   am.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie expires the session cookie.
func (am *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     am.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   am.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// AllowSignup reports whether the sign-up page is open.
func (am *Manager) AllowSignup() bool { return am.config.AllowSignup }

// MinPasswordLength is the shortest accepted password.
func (am *Manager) MinPasswordLength() int { return am.config.MinPasswordLength }

func (am *Manager) domainAllowed(email string) bool {
	if am.config.AllowedDomain == "" {
		return true
	}
	at := strings.LastIndex(email, "@")
	return at >= 0 && strings.EqualFold(email[at+1:], am.config.AllowedDomain)
}

// Ping checks the session store.
func (am *Manager) Ping(ctx context.Context) error {
	return am.sessions.Ping(ctx)
}

// IsUserError reports whether err is a user-facing validation failure rather
// than a backend fault.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrPasswordMismatch, ErrPasswordTooShort, ErrPasswordTooLong,
		ErrSignupDisabled, ErrDomainNotAllowed, ErrUserExists,
		ErrInvalidLoginCode, ErrLoginCodeUsed, ErrNoSession,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
