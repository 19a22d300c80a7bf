package dashboard

import (
	"context"
	"io"

	"github.com/ignite/leadfunnel/internal/domain"
)

// SubscriberReader lists captured leads, newest first. limit <= 0 means no
// limit.
type SubscriberReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Subscriber, error)
}

// ClickReader lists payment clicks, newest first. limit <= 0 means no limit.
type ClickReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.PaymentClick, error)
}

// FileStore is the download bucket.
type FileStore interface {
	// List returns every object without URLs.
	List(ctx context.Context) ([]domain.StoredFile, error)

	// Upload stores body under name.
	Upload(ctx context.Context, name string, body io.Reader, size int64, contentType string) (domain.StoredFile, error)

	// Delete removes the named object.
	Delete(ctx context.Context, name string) error

	// PublicURL derives a URL a browser can fetch the object from.
	PublicURL(ctx context.Context, name string) (string, error)
}
