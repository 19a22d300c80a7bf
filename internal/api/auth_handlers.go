package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/domain"
)

// Login page notices passed as ?notice=.
var loginNotices = map[string]string{
	"signed_out":     "You have been signed out.",
	"signout_failed": "Sign-out could not be confirmed, but your session cookie was cleared.",
	"link_sent":      "If that address belongs to an admin, a sign-in link is on its way.",
}

// Auth error page reasons passed as ?reason=.
var authErrorReasons = map[string]string{
	"invalid_code":    "This sign-in link is invalid or has expired.",
	"code_used":       "This sign-in link has already been used.",
	"invalid_state":   "The sign-in request expired. Please try again.",
	"not_allowed":     "This account is not allowed to access the dashboard.",
	"exchange_failed": "Google sign-in failed. Please try again.",
	"userinfo_failed": "Google sign-in failed. Please try again.",
	"session_failed":  "We could not start your session. Please try again.",
	"access_denied":   "Sign-in was cancelled.",
}

type authView struct {
	Email       string
	Next        string
	Notice      string
	Error       string
	AllowSignup bool
	Google      bool
	MinLength   int
}

func (h *Handlers) authView(r *http.Request) authView {
	return authView{
		Next:        r.URL.Query().Get("next"),
		Notice:      loginNotices[r.URL.Query().Get("notice")],
		AllowSignup: h.auth.AllowSignup(),
		Google:      h.auth.GoogleEnabled(),
		MinLength:   h.auth.MinPasswordLength(),
	}
}

// userMessage maps an auth error to what the visitor sees. Backend faults
// are logged and replaced with a generic message.
func (h *Handlers) userMessage(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, auth.ErrPasswordMismatch):
		return http.StatusUnprocessableEntity, "Passwords do not match."
	case errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusUnprocessableEntity, "Password is too short."
	case errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusUnprocessableEntity, "Password is too long."
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "An account with this email already exists."
	case errors.Is(err, auth.ErrDomainNotAllowed):
		return http.StatusForbidden, "This email domain is not allowed."
	case errors.Is(err, auth.ErrSignupDisabled):
		return http.StatusForbidden, "Sign-up is disabled."
	}
	h.log.Error("auth request failed", "error", err)
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// startSession sets the cookie and sends the browser on.
func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, sess *domain.Session, next string) {
	if err := h.auth.SetSessionCookie(w, sess); err != nil {
		h.log.Error("set session cookie failed", "error", err)
		http.Redirect(w, r, "/auth/error?reason=session_failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, auth.SafeNext(next), http.StatusSeeOther)
}

// HandleLoginPage renders the sign-in form. Visitors who already have a
// session go straight on.
//
//	GET /auth/login
func (h *Handlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	view := h.authView(r)
	if g := h.auth.Check(r); g.State() == auth.StateAuthenticated && view.Notice == "" {
		http.Redirect(w, r, auth.SafeNext(view.Next), http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, pageLogin, view)
}

// HandleLogin signs in with email and password.
//
//	POST /auth/login
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	view := h.authView(r)
	view.Email = r.PostFormValue("email")
	view.Next = r.PostFormValue("next")

	sess, err := h.auth.SignIn(r.Context(), view.Email, r.PostFormValue("password"))
	if err != nil {
		status, msg := h.userMessage(err)
		view.Error = msg
		h.render(w, status, pageLogin, view)
		return
	}
	h.startSession(w, r, sess, view.Next)
}

// HandleSignupPage renders the sign-up form.
//
//	GET /auth/signup
func (h *Handlers) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	if !h.auth.AllowSignup() {
		http.NotFound(w, r)
		return
	}
	h.render(w, http.StatusOK, pageSignup, h.authView(r))
}

// HandleSignup creates an admin account and signs it in.
//
//	POST /auth/signup
func (h *Handlers) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if !h.auth.AllowSignup() {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	view := h.authView(r)
	view.Email = r.PostFormValue("email")

	sess, err := h.auth.SignUp(r.Context(), view.Email, r.PostFormValue("password"), r.PostFormValue("confirm_password"))
	if err != nil {
		status, msg := h.userMessage(err)
		view.Error = msg
		h.render(w, status, pageSignup, view)
		return
	}
	h.startSession(w, r, sess, "/admin")
}

// HandleSetPasswordPage renders the password update form.
//
//	GET /auth/set-password
func (h *Handlers) HandleSetPasswordPage(w http.ResponseWriter, r *http.Request) {
	view := h.authView(r)
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		view.Email = sess.Email
	}
	h.render(w, http.StatusOK, pageSetPassword, view)
}

// HandleSetPassword updates the signed-in admin's password.
//
//	POST /auth/set-password
func (h *Handlers) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := auth.SessionFromContext(r.Context())
	view := h.authView(r)
	if sess != nil {
		view.Email = sess.Email
	}

	err := h.auth.UpdatePassword(r.Context(), sess, r.PostFormValue("password"), r.PostFormValue("confirm_password"))
	if err != nil {
		status, msg := h.userMessage(err)
		view.Error = msg
		h.render(w, status, pageSetPassword, view)
		return
	}
	http.Redirect(w, r, "/admin?notice=password_updated", http.StatusSeeOther)
}

// HandleLoginLink emails a one-time sign-in link. The response never says
// whether the address belongs to an admin.
//
//	POST /auth/login-link
func (h *Handlers) HandleLoginLink(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if _, err := h.auth.IssueLoginLink(r.Context(), r.PostFormValue("email")); err != nil &&
		!errors.Is(err, auth.ErrUserNotFound) {
		h.log.Error("login link failed", "error", err)
	}
	http.Redirect(w, r, auth.LoginPath+"?notice=link_sent", http.StatusSeeOther)
}

// HandleCallback exchanges an emailed login code for a session.
//
//	GET /auth/callback?code=...
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.ExchangeLoginCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		reason := "invalid_code"
		switch {
		case errors.Is(err, auth.ErrLoginCodeUsed):
			reason = "code_used"
		case !auth.IsLoginCodeError(err):
			h.log.Error("login code exchange failed", "error", err)
			reason = "session_failed"
		}
		http.Redirect(w, r, "/auth/error?reason="+url.QueryEscape(reason), http.StatusSeeOther)
		return
	}
	h.startSession(w, r, sess, "/admin")
}

// HandleAuthError renders the auth error page.
//
//	GET /auth/error?reason=...
func (h *Handlers) HandleAuthError(w http.ResponseWriter, r *http.Request) {
	msg, ok := authErrorReasons[r.URL.Query().Get("reason")]
	if !ok {
		msg = "Sign-in failed. Please try again."
	}
	h.render(w, http.StatusOK, pageAuthError, authView{Error: msg})
}

// HandleLogout signs out and always lands on the login page. A sign-out
// failure is logged and shown as a notice; the cookie is cleared either way.
//
//	POST /auth/logout
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	notice := "signed_out"
	if err := h.auth.SignOut(r.Context(), r); err != nil {
		h.log.Error("sign out failed", "error", err)
		notice = "signout_failed"
	}
	h.auth.ClearSessionCookie(w)
	http.Redirect(w, r, auth.LoginPath+"?notice="+notice, http.StatusSeeOther)
}
