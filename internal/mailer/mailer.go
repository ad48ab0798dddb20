// Package mailer delivers workflow notifications. The core selects a
// template and substitution params; transport-level formatting stays
// here. Every attempt is recorded in email_logs for operator inspection.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/jorgeteixe/hackackathon/config"
	"github.com/jorgeteixe/hackackathon/internal/models"
)

// Template identifiers for outbound notifications.
const (
	TemplateVerifyEmail      = "verify_email"
	TemplateEmailVerified    = "email_verified"
	TemplateSeatConfirmation = "seat_confirmation"
)

// Notifier sends a templated notification to one recipient. Failures are
// returned to the caller; how they are handled differs per workflow step.
type Notifier interface {
	Send(ctx context.Context, template, recipient string, params map[string]string) error
}

// SMTP is a Notifier over plain SMTP.
type SMTP struct {
	cfg    config.EmailConfig
	logs   *LogRepository
	logger *zap.Logger
}

// NewSMTP creates an SMTP notifier. logs may be nil to skip recording.
func NewSMTP(cfg config.EmailConfig, logs *LogRepository, logger *zap.Logger) *SMTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTP{cfg: cfg, logs: logs, logger: logger}
}

// Send renders the template and delivers it, recording the attempt.
func (m *SMTP) Send(ctx context.Context, template, recipient string, params map[string]string) error {
	subject, body, err := render(template, params)
	if err != nil {
		return err
	}
	sendErr := m.deliver(recipient, subject, body)
	if m.logs != nil {
		log := &models.EmailLog{
			Template:  template,
			Recipient: recipient,
			Subject:   subject,
			Status:    models.EmailStatusSent,
		}
		if sendErr != nil {
			log.Status = models.EmailStatusFailed
			log.Error = sendErr.Error()
		}
		if recErr := m.logs.Record(ctx, log); recErr != nil {
			m.logger.Error("record email log failed", zap.Error(recErr))
		}
	}
	return sendErr
}

func (m *SMTP) deliver(recipient, subject, body string) error {
	if m.cfg.SMTPHost == "" {
		return fmt.Errorf("smtp host not configured")
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, m.cfg.FromAddress),
		"To: " + recipient,
		"Reply-To: " + m.cfg.ReplyTo,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(addr, auth, m.cfg.FromAddress, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func render(template string, params map[string]string) (subject, body string, err error) {
	name := params["name"]
	host := params["host"]
	switch template {
	case TemplateVerifyEmail:
		subject = "HackUDC - Verifica tu correo"
		body = fmt.Sprintf(
			"Hola %s,\n\nVerifica tu correo para completar el registro:\n\n%s/verify/%s\n\nEl enlace caduca en unos días.\n",
			name, host, params["token"])
	case TemplateEmailVerified:
		subject = "HackUDC - Correo verificado"
		body = fmt.Sprintf(
			"Hola %s,\n\nTu correo está verificado. Recibirás más información en breve.\n",
			name)
	case TemplateSeatConfirmation:
		subject = "HackUDC - Confirma tu plaza"
		body = fmt.Sprintf(
			"Hola %s,\n\nHas sido aceptado. Confirma o rechaza tu plaza antes de %s:\n\n%s/confirm/%s\n",
			name, params["expires"], host, params["token"])
	default:
		return "", "", fmt.Errorf("unknown mail template %q", template)
	}
	return subject, body, nil
}
