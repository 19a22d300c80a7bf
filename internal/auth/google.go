package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/domain"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie  = "oauth_state"
)

// GoogleUserInfo represents the user info returned by Google
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	HD            string `json:"hd"` // Hosted domain (GSuite domain)
}

func newGoogleConfig(cfg config.AuthConfig, baseURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (am *Manager) GoogleEnabled() bool { return am.oauth2Config != nil }

// generateState creates a random state string for OAuth
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleGoogleLogin initiates the Google OAuth flow
func (am *Manager) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if am.oauth2Config == nil {
		http.NotFound(w, r)
		return
	}
	state, err := generateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   am.config.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if am.config.AllowedDomain != "" {
		opts = append(opts, oauth2.SetAuthURLParam("hd", am.config.AllowedDomain))
	}
	http.Redirect(w, r, am.oauth2Config.AuthCodeURL(state, opts...), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback processes the OAuth callback from Google. Only
// existing admins, or verified addresses in the allowed domain, get in.
func (am *Manager) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if am.oauth2Config == nil {
		http.NotFound(w, r)
		return
	}
	fail := func(reason string) {
		http.Redirect(w, r, "/auth/error?reason="+url.QueryEscape(reason), http.StatusTemporaryRedirect)
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || r.URL.Query().Get("state") != stateCookie.Value {
		am.log.Warn("google callback state mismatch")
		fail("invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		am.log.Warn("google returned error", "error", errMsg)
		fail(errMsg)
		return
	}

	token, err := am.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		am.log.Error("google code exchange failed", "error", err)
		fail("exchange_failed")
		return
	}

	info, err := am.getUserInfo(r.Context(), token)
	if err != nil {
		am.log.Error("google userinfo failed", "error", err)
		fail("userinfo_failed")
		return
	}

	u, err := am.authorizeGoogleUser(r.Context(), info)
	if err != nil {
		am.log.Warn("google sign-in rejected", "email", info.Email, "error", err)
		fail("not_allowed")
		return
	}

	sess, err := am.newSession(r.Context(), u)
	if err != nil {
		am.log.Error("create session failed", "error", err)
		fail("session_failed")
		return
	}
	if err := am.SetSessionCookie(w, sess); err != nil {
		am.log.Error("set session cookie failed", "error", err)
		fail("session_failed")
		return
	}
	http.Redirect(w, r, "/admin", http.StatusTemporaryRedirect)
}

// authorizeGoogleUser maps a Google account onto an admin. Existing admins
// always pass; otherwise a verified address in the allowed domain is
// enrolled with no password.
func (am *Manager) authorizeGoogleUser(ctx context.Context, info *GoogleUserInfo) (*domain.AdminUser, error) {
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" || !info.VerifiedEmail {
		return nil, ErrInvalidCredentials
	}

	u, err := am.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if u != nil {
		return u, nil
	}

	if am.config.AllowedDomain == "" || !am.domainAllowed(email) {
		return nil, ErrDomainNotAllowed
	}
	u = &domain.AdminUser{Email: email}
	if err := am.admins.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// getUserInfo fetches the user's profile from Google
func (am *Manager) getUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	resp, err := am.oauth2Config.Client(ctx, token).Get(am.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error: %s", string(body))
	}

	var userInfo GoogleUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	return &userInfo, nil
}
