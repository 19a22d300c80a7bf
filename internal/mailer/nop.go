package mailer

import (
	"context"

	"github.com/ignite/leadfunnel/internal/pkg/logger"
)

// NopSender logs instead of sending. Used when mailer.provider is "none".
type NopSender struct{}

func (NopSender) Send(_ context.Context, msg Message) error {
	logger.Info("mail not sent, no provider configured", "to_email", msg.To, "subject", msg.Subject)
	return nil
}
