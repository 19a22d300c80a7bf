// Package mailer sends the transactional emails: the free PDF link to a new
// lead and the one-time sign-in link to an admin. Delivery goes through SES,
// SendGrid, or nowhere ("none" logs instead of sending).
package mailer

import (
	"context"
	"fmt"

	"github.com/ignite/leadfunnel/internal/config"
)

// Message is one outgoing email.
type Message struct {
	FromEmail string
	FromName  string
	To        string
	Subject   string
	HTML      string
	Text      string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders the templates and hands the result to a Sender.
type Mailer struct {
	sender      Sender
	templates   *Templates
	cfg         config.MailerConfig
	linkMinutes int
}

// Option configures optional Mailer behavior.
type Option func(*Mailer)

// WithLinkMinutes sets the login link lifetime quoted in the sign-in mail.
func WithLinkMinutes(n int) Option {
	return func(m *Mailer) { m.linkMinutes = n }
}

// New builds the Mailer for cfg.Provider.
func New(ctx context.Context, cfg config.MailerConfig, opts ...Option) (*Mailer, error) {
	sender, err := NewSender(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewMailer(sender, cfg, opts...)
}

// NewMailer wraps an existing sender.
func NewMailer(sender Sender, cfg config.MailerConfig, opts ...Option) (*Mailer, error) {
	tpl, err := NewTemplates(cfg)
	if err != nil {
		return nil, err
	}
	m := &Mailer{sender: sender, templates: tpl, cfg: cfg, linkMinutes: 15}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewSender picks the delivery backend.
func NewSender(ctx context.Context, cfg config.MailerConfig) (Sender, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESSender(ctx, cfg)
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("mailer: sendgrid_api_key is required")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, ""), nil
	case "none", "":
		return NopSender{}, nil
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", cfg.Provider)
	}
}

// Enabled reports whether mail actually leaves the process.
func (m *Mailer) Enabled() bool {
	_, nop := m.sender.(NopSender)
	return !nop
}

// SendDownloadLink mails the free PDF link to a new lead.
func (m *Mailer) SendDownloadLink(ctx context.Context, to, downloadURL string) error {
	subject, html, err := m.templates.Lead(to, downloadURL)
	if err != nil {
		return err
	}
	return m.send(ctx, to, subject, html, "Download your free PDF: "+downloadURL)
}

// SendLoginLink mails a one-time sign-in link to an admin.
func (m *Mailer) SendLoginLink(ctx context.Context, to, link string) error {
	subject, html, err := m.templates.Login(to, link, m.linkMinutes)
	if err != nil {
		return err
	}
	return m.send(ctx, to, subject, html, "Sign in to the dashboard: "+link)
}

func (m *Mailer) send(ctx context.Context, to, subject, html, text string) error {
	if t := m.cfg.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return m.sender.Send(ctx, Message{
		FromEmail: m.cfg.FromEmail,
		FromName:  m.cfg.FromName,
		To:        to,
		Subject:   subject,
		HTML:      html,
		Text:      text,
	})
}
