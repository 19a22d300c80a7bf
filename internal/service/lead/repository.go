package lead

import (
	"context"

	"github.com/ignite/leadfunnel/internal/domain"
)

// SubscriberRepository defines the data access contract for captured leads.
type SubscriberRepository interface {
	// FindByEmail returns the subscriber with exactly this email, or nil
	// when there is none.
	FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// Insert stores a new subscriber and fills in ID and CreatedAt. Returns
	// ErrDuplicate when the email is already present.
	Insert(ctx context.Context, s *domain.Subscriber) error
}

// ClickRepository defines the data access contract for payment clicks.
type ClickRepository interface {
	Insert(ctx context.Context, c *domain.PaymentClick) error
}

// Mailer sends the download link to a new lead.
type Mailer interface {
	SendDownloadLink(ctx context.Context, to, downloadURL string) error
}
