// Package email sends transactional mail (verification links, password
// reset links, 2FA setup/removal notices) behind a small interface so
// tests and local development can swap in a no-op sender, mirroring the
// teacher's callbacks.Notifier interchangeable-notifier pattern.
package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
	"github.com/hearthforge/backend/internal/logger"
)

// Mailer sends a single plain-text/HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
	log zerolog.Logger
}

// NewSMTPMailer builds a Mailer backed by net/smtp, the way the teacher's
// concrete notifier implementations wrap a single external transport.
func NewSMTPMailer(cfg config.MailConfig, log zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.cfg.FromAddr, to, subject, body)

	if err := smtp.SendMail(addr, auth, m.cfg.FromAddr, []string{to}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("to", logger.RedactEmail(to)).Msg("email.send_failed")
		return apperrors.Wrap(apperrors.CodeMail, "send email", err)
	}
	return nil
}

// NoopMailer discards all mail; used in tests and local development without
// SMTP credentials configured.
type NoopMailer struct {
	log zerolog.Logger
}

// NewNoopMailer builds a Mailer that logs instead of sending.
func NewNoopMailer(log zerolog.Logger) *NoopMailer {
	return &NoopMailer{log: log}
}

func (m *NoopMailer) Send(ctx context.Context, to, subject, body string) error {
	m.log.Debug().Str("to", logger.RedactEmail(to)).Str("subject", subject).Msg("email.noop_send")
	return nil
}
