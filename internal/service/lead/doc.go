// Package lead implements the public landing page flows: the opt-in form
// that captures a subscriber and hands out the free PDF, and the premium
// button that logs a payment click.
//
// Both flows degrade instead of blocking. A storage failure is logged and
// carried on the result, but the download (or the "not available yet"
// modal) still happens. Only local validation short-circuits.
//
// The service layer depends on the interfaces in repository.go and never
// imports net/http or database/sql directly.
package lead
