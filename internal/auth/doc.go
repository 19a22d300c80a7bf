// Package auth guards the admin dashboard.
//
// Admins sign in with a password, an emailed one-time login link, or Google
// when it is configured. A successful sign-in creates a server-side session
// in a SessionStore (Redis, or memory for single-node setups) and sets a
// signed cookie carrying only the session id.
//
// Two guards sit in front of the dashboard: RequireSession runs at the edge
// for every /admin path and redirects before any data is read, and Guard
// resolves the page-level checking/authenticated/unauthenticated state.
package auth
