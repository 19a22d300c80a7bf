package domain

import "time"

// AnonymousEmail tags a payment click made before any email was entered.
const AnonymousEmail = "anonymous"

// PaymentClick records one press of the premium membership button.
type PaymentClick struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	ClickedAt time.Time `json:"clicked_at" db:"clicked_at"`
}

// ClickEmail returns the email to tag a click with.
func ClickEmail(email string) string {
	if e := NormalizeEmail(email); e != "" {
		return e
	}
	return AnonymousEmail
}
