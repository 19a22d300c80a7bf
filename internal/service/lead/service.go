package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/pkg/logger"
)

// Outcome classifies what happened to a submission.
type Outcome string

const (
	OutcomeConsentRequired   Outcome = "consent_required"
	OutcomeInvalidEmail      Outcome = "invalid_email"
	OutcomeCreated           Outcome = "created"
	OutcomeAlreadySubscribed Outcome = "already_subscribed"
	OutcomeSaveFailed        Outcome = "save_failed"
)

// User-facing notices.
const (
	NoticeConsentRequired = "Please agree to the collection of your personal information."
	NoticeInvalidEmail    = "Please enter a valid email address."
	NoticeDownloadStarted = "Your free PDF download is starting!"
	NoticeEmailSent       = "We also sent the PDF link to your inbox."
	NoticePaymentSoon     = "Sorry, payments are not available yet. You can still get the free PDF!"
)

// Submission is the landing form as posted by the visitor.
type Submission struct {
	Email           string `json:"email"`
	MarketingAgreed bool   `json:"marketing_agreed"`
	PrivacyAgreed   bool   `json:"privacy_agreed"`
}

// Result tells the caller which UI actions to perform. Err is the logged
// storage error, if any; it never clears Download.
type Result struct {
	Outcome     Outcome `json:"outcome"`
	Download    bool    `json:"download"`
	DownloadURL string  `json:"download_url,omitempty"`
	Notice      string  `json:"notice"`
	Err         error   `json:"-"`
}

// ClickResult tells the caller to show the "not available yet" modal. Err is
// the logged insert error, if any; it never clears ShowModal.
type ClickResult struct {
	Email     string `json:"email"`
	ShowModal bool   `json:"show_modal"`
	Notice    string `json:"notice"`
	Err       error  `json:"-"`
}

// Service implements the landing page flows. It is safe for concurrent use.
type Service struct {
	subscribers SubscriberRepository
	clicks      ClickRepository
	mailer      Mailer
	downloadURL string
	mailLink    string
	log         *logger.Logger
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithDownloadMail emails link to every newly created lead. Failures are
// logged only.
func WithDownloadMail(m Mailer, link string) Option {
	return func(s *Service) {
		s.mailer = m
		s.mailLink = link
	}
}

// NewService creates a lead service. downloadURL is the same-origin path the
// browser fetches after a successful submission.
func NewService(subs SubscriberRepository, clicks ClickRepository, downloadURL string, opts ...Option) *Service {
	s := &Service{
		subscribers: subs,
		clicks:      clicks,
		downloadURL: downloadURL,
		log:         logger.Named("lead"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs the opt-in flow. Without privacy consent nothing is written.
// With consent, the subscriber is looked up by exact email and inserted only
// when absent; the download is triggered whatever the storage outcome.
func (s *Service) Submit(ctx context.Context, sub Submission) Result {
	if !sub.PrivacyAgreed {
		return Result{Outcome: OutcomeConsentRequired, Notice: NoticeConsentRequired, Err: ErrConsentRequired}
	}

	email := domain.NormalizeEmail(sub.Email)
	if !domain.ValidEmail(email) {
		return Result{Outcome: OutcomeInvalidEmail, Notice: NoticeInvalidEmail, Err: ErrInvalidEmail}
	}

	res := Result{Download: true, DownloadURL: s.downloadURL, Notice: NoticeDownloadStarted}

	existing, err := s.subscribers.FindByEmail(ctx, email)
	switch {
	case err != nil:
		res.Outcome = OutcomeSaveFailed
		res.Err = fmt.Errorf("lookup subscriber: %w", err)
	case existing != nil:
		res.Outcome = OutcomeAlreadySubscribed
	default:
		res.Outcome, res.Err = s.insert(ctx, email, sub)
	}

	if res.Err != nil {
		s.log.Error("lead not saved, download continues", "email", email, "error", res.Err)
	}

	if res.Outcome == OutcomeCreated && s.mailer != nil {
		if err := s.mailer.SendDownloadLink(ctx, email, s.mailLink); err != nil {
			s.log.Warn("download mail failed", "email", email, "error", err)
		} else {
			res.Notice = NoticeDownloadStarted + " " + NoticeEmailSent
		}
	}
	return res
}

func (s *Service) insert(ctx context.Context, email string, sub Submission) (Outcome, error) {
	row := &domain.Subscriber{
		Email:           email,
		MarketingAgreed: sub.MarketingAgreed,
		PrivacyAgreed:   sub.PrivacyAgreed,
	}
	err := s.subscribers.Insert(ctx, row)
	switch {
	case err == nil:
		s.log.Info("lead captured", "email", email, "marketing", sub.MarketingAgreed)
		return OutcomeCreated, nil
	case errors.Is(err, ErrDuplicate):
		// Lost the race with a concurrent submission of the same address.
		return OutcomeAlreadySubscribed, nil
	default:
		return OutcomeSaveFailed, fmt.Errorf("insert subscriber: %w", err)
	}
}

// RecordPaymentClick logs a premium button press tagged with email, or with
// the anonymous sentinel when none was entered. The modal is always shown.
func (s *Service) RecordPaymentClick(ctx context.Context, email string) ClickResult {
	click := &domain.PaymentClick{Email: domain.ClickEmail(email)}
	res := ClickResult{Email: click.Email, ShowModal: true, Notice: NoticePaymentSoon}

	if err := s.clicks.Insert(ctx, click); err != nil {
		res.Err = fmt.Errorf("insert payment click: %w", err)
		s.log.Error("payment click not saved, modal continues", "email", click.Email, "error", err)
	}
	return res
}
