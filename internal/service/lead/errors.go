package lead

import "errors"

// Sentinel errors for the lead service layer.
var (
	// ErrDuplicate is returned by a SubscriberRepository insert that hit the
	// unique email index. It means "already subscribed", not a failure.
	ErrDuplicate = errors.New("subscriber already exists")

	ErrConsentRequired = errors.New("privacy consent is required")
	ErrInvalidEmail    = errors.New("invalid email address")
)
