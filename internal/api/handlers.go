package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/pkg/logger"
	"github.com/ignite/leadfunnel/internal/service/dashboard"
	"github.com/ignite/leadfunnel/internal/service/lead"
)

//go:embed templates/*.html
var templateFS embed.FS

// page names, one template file each, all sharing templates/base.html.
const (
	pageLanding     = "landing.html"
	pageLogin       = "login.html"
	pageSignup      = "signup.html"
	pageSetPassword = "set_password.html"
	pageAuthError   = "auth_error.html"
	pageAdmin       = "admin.html"
)

var templateFuncs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"filesize": func(n int64) string {
		switch {
		case n >= 1<<20:
			return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
		case n >= 1<<10:
			return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
		default:
			return fmt.Sprintf("%d B", n)
		}
	},
}

// Handlers contains all HTTP handlers
type Handlers struct {
	lead      *lead.Service
	dashboard *dashboard.Service
	auth      *auth.Manager
	landing   config.LandingConfig
	maxUpload int64
	pages     map[string]*template.Template
	log       *logger.Logger
}

// NewHandlers creates the handlers and parses the embedded pages.
func NewHandlers(leadSvc *lead.Service, dashSvc *dashboard.Service, am *auth.Manager, landing config.LandingConfig, maxUpload int64) (*Handlers, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{pageLanding, pageLogin, pageSignup, pageSetPassword, pageAuthError, pageAdmin} {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Handlers{
		lead:      leadSvc,
		dashboard: dashSvc,
		auth:      am,
		landing:   landing,
		maxUpload: maxUpload,
		pages:     pages,
		log:       logger.Named("api"),
	}, nil
}

// render writes a full HTML page.
func (h *Handlers) render(w http.ResponseWriter, status int, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		h.log.Error("render failed", "page", page, "error", err)
	}
}

// formBool reads an HTML checkbox.
func formBool(r *http.Request, key string) bool {
	switch r.PostFormValue(key) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
