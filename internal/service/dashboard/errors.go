package dashboard

import "errors"

// Sentinel errors for the dashboard service layer.
var (
	ErrNoFile      = errors.New("no file selected")
	ErrInvalidName = errors.New("invalid file name")
)
