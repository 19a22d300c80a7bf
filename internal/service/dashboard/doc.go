// Package dashboard loads the admin dashboard: recent subscribers, recent
// payment clicks, summary stats and the download bucket listing. It also
// uploads and deletes bucket objects, returning a fresh listing after each
// change.
//
// Reads are independent. A failed read renders as an empty table and is
// reported alongside the data rather than failing the whole page.
package dashboard
