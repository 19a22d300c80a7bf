package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Subscriber is a lead captured by the landing page opt-in form. Rows are
// created once and never updated or deleted by this service.
type Subscriber struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	MarketingAgreed bool      `json:"marketing_agreed" db:"marketing_agreed"`
	PrivacyAgreed   bool      `json:"privacy_agreed" db:"privacy_agreed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NormalizeEmail trims surrounding whitespace. Case is preserved so the
// duplicate lookup stays an exact match on what the visitor typed.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidEmail reports whether email is a bare address ("a@b.c"), not a
// display-name form.
func ValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
