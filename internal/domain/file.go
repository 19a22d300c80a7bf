package domain

import "time"

// StoredFile is one object in the download bucket. URL is derived by the
// storage backend and may be empty when derivation failed.
type StoredFile struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
