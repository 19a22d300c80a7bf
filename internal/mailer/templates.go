package mailer

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/leadfunnel/internal/config"
)

const (
	defaultLeadSubject  = "Your free PDF is ready"
	defaultLoginSubject = "Your dashboard sign-in link"

	defaultLeadTemplate = `<p>Hi {{ email | escape }},</p>
<p>Thanks for signing up. Your free PDF is waiting for you:</p>
<p><a href="{{ download_url | escape }}">Download the PDF</a></p>`

	defaultLoginTemplate = `<p>Someone asked to sign in to the dashboard as {{ email | escape }}.</p>
<p><a href="{{ link | escape }}">Sign in</a>. The link works once and expires in {{ minutes }} minutes.</p>
<p>If this was not you, ignore this email.</p>`
)

// Templates renders the liquid subjects and bodies. Config values override
// the built-in defaults.
type Templates struct {
	engine *liquid.Engine

	leadSubject, leadBody   *liquid.Template
	loginSubject, loginBody *liquid.Template
}

// NewTemplates parses all templates up front so a bad override fails at boot.
func NewTemplates(cfg config.MailerConfig) (*Templates, error) {
	t := &Templates{engine: liquid.NewEngine()}

	var err error
	parse := func(name, src, fallback string) *liquid.Template {
		if err != nil {
			return nil
		}
		if src == "" {
			src = fallback
		}
		var tpl *liquid.Template
		tpl, err = t.engine.ParseString(src)
		if err != nil {
			err = fmt.Errorf("parse %s template: %w", name, err)
		}
		return tpl
	}

	t.leadSubject = parse("lead subject", cfg.LeadSubject, defaultLeadSubject)
	t.leadBody = parse("lead body", cfg.LeadTemplate, defaultLeadTemplate)
	t.loginSubject = parse("login subject", cfg.LoginSubject, defaultLoginSubject)
	t.loginBody = parse("login body", cfg.LoginTemplate, defaultLoginTemplate)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Lead renders the download mail.
func (t *Templates) Lead(email, downloadURL string) (subject, body string, err error) {
	return render(t.leadSubject, t.leadBody, liquid.Bindings{
		"email":        email,
		"download_url": downloadURL,
	})
}

// Login renders the sign-in link mail.
func (t *Templates) Login(email, link string, minutes int) (subject, body string, err error) {
	return render(t.loginSubject, t.loginBody, liquid.Bindings{
		"email":   email,
		"link":    link,
		"minutes": minutes,
	})
}

func render(subjectTpl, bodyTpl *liquid.Template, vars liquid.Bindings) (string, string, error) {
	subject, serr := subjectTpl.RenderString(vars)
	if serr != nil {
		return "", "", fmt.Errorf("render subject: %w", serr)
	}
	body, berr := bodyTpl.RenderString(vars)
	if berr != nil {
		return "", "", fmt.Errorf("render body: %w", berr)
	}
	return subject, body, nil
}
