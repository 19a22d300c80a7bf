package auth

import (
	"context"
	"time"

	"github.com/ignite/leadfunnel/internal/domain"
)

// AdminStore defines the data access contract for admin accounts.
type AdminStore interface {
	// Create stores a new admin and fills in ID and CreatedAt. Returns
	// ErrUserExists when the email is taken.
	Create(ctx context.Context, u *domain.AdminUser) error

	// FindByEmail returns the admin with this email, or nil when absent.
	FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error)

	// UpdatePasswordHash replaces the password hash. Returns ErrUserNotFound
	// when no such admin exists.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionStore keeps server-side sessions and one-time markers.
type SessionStore interface {
	// Create saves s until s.ExpiresAt.
	Create(ctx context.Context, s *domain.Session) error

	// Get returns the session, or ErrNoSession when absent or expired.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Consume marks key as used for ttl. It reports true only for the first
	// caller.
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
}
