package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignite/leadfunnel/internal/domain"
)

const (
	loginLinkIssuer   = "leadfunnel"
	loginLinkAudience = "admin-login"
)

// IssueLoginLink emails a one-time sign-in link to an existing admin and
// returns it. Unknown addresses get ErrUserNotFound; handlers should not
// reveal that to the visitor.
func (am *Manager) IssueLoginLink(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(domain.NormalizeEmail(email))
	u, err := am.admins.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find admin: %w", err)
	}
	if u == nil {
		return "", ErrUserNotFound
	}

	now := am.now()
	claims := jwt.RegisteredClaims{
		Issuer:    loginLinkIssuer,
		Subject:   u.Email,
		Audience:  jwt.ClaimStrings{loginLinkAudience},
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(am.config.LoginLinkTTL())),
	}
	code, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(am.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign login code: %w", err)
	}

	link := am.baseURL + "/auth/callback?code=" + url.QueryEscape(code)
	if am.mailer != nil {
		if err := am.mailer.SendLoginLink(ctx, u.Email, link); err != nil {
			return "", fmt.Errorf("send login link: %w", err)
		}
	}
	am.log.Info("login link issued", "email", u.Email)
	return link, nil
}

// ExchangeLoginCode turns a login link code into a session. Each code works
// once.
func (am *Manager) ExchangeLoginCode(ctx context.Context, code string) (*domain.Session, error) {
	if code == "" {
		return nil, ErrInvalidLoginCode
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(code, &claims,
		func(*jwt.Token) (interface{}, error) { return am.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(loginLinkIssuer),
		jwt.WithAudience(loginLinkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(am.now),
	)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidLoginCode
	}

	first, err := am.sessions.Consume(ctx, "login:"+claims.ID, am.config.LoginLinkTTL())
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrLoginCodeUsed
	}

	u, err := am.admins.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidLoginCode
	}
	return am.newSession(ctx, u)
}

// IsLoginCodeError reports whether err came from a bad or reused code.
func IsLoginCodeError(err error) bool {
	return errors.Is(err, ErrInvalidLoginCode) || errors.Is(err, ErrLoginCodeUsed)
}
