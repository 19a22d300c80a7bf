// Package storage holds the download bucket: the single collection of PDF
// objects managed from the admin dashboard. It is backed by S3 ("aws") or
// a directory on disk ("local").
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/domain"
)

// Sentinel errors for the storage layer.
var (
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrInvalidName = errors.New("invalid object name")
)

// Bucket is the download bucket.
type Bucket interface {
	// List returns every object. URLs are left empty; see PublicURL.
	List(ctx context.Context) ([]domain.StoredFile, error)

	// Upload stores body under name.
	Upload(ctx context.Context, name string, body io.Reader, size int64, contentType string) (domain.StoredFile, error)

	// Delete removes the named object. Returns ErrNotFound if it is absent.
	Delete(ctx context.Context, name string) error

	// PublicURL derives a URL a browser can fetch the object from.
	PublicURL(ctx context.Context, name string) (string, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// ValidName reports whether name is a flat object name: no path
// separators, no dot segments, no control characters.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// New creates the bucket selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Bucket, error) {
	switch cfg.Type {
	case "aws":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage: s3_bucket is required for type aws")
		}
		return NewS3Bucket(ctx, cfg)
	case "local", "":
		base := cfg.PublicBaseURL
		if base == "" {
			base = LocalURLPrefix
		}
		return NewLocalBucket(cfg.LocalPath, base)
	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}
