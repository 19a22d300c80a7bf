package auth

import "errors"

// Sentinel errors for the auth layer.
var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrPasswordTooLong    = errors.New("password is too long")
	ErrSignupDisabled     = errors.New("sign-up is disabled")
	ErrDomainNotAllowed   = errors.New("email domain is not allowed")
	ErrUserExists         = errors.New("admin user already exists")
	ErrUserNotFound       = errors.New("admin user not found")
	ErrInvalidLoginCode   = errors.New("login code is invalid or expired")
	ErrLoginCodeUsed      = errors.New("login code was already used")
)
