package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/infrastructure/config"
)

// Notifier delivers job result reports. Recipients override the configured
// list when given.
type Notifier interface {
	Notify(subject, body string, to ...string) error
}

// SMTPMailer sends job reports over SMTP.
type SMTPMailer struct {
	cfg    config.EmailConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a mailer from the email configuration.
func NewSMTPMailer(cfg config.EmailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Notify sends one plain-text report. Recipients default to the configured
// list; an explicit list replaces it for this send only.
func (m *SMTPMailer) Notify(subject, body string, to ...string) error {
	if !m.cfg.Enabled {
		return nil
	}

	recipients := m.cfg.To
	if len(to) > 0 {
		recipients = to
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.cfg.From, strings.Join(recipients, ", "), subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)

	if err := m.send(addr, auth, m.cfg.From, recipients, msg); err != nil {
		m.logger.Error("SMTP send failed", zap.String("subject", subject), zap.Error(err))
		return err
	}
	m.logger.Info("Job report sent", zap.String("subject", subject), zap.Strings("to", recipients))
	return nil
}

// NopNotifier discards reports. Used when email is disabled.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(subject, body string, to ...string) error { return nil }

// FormatReport renders a job report body. An empty entry set yields
// "Nothing to do."; otherwise each section is prefixed with its entry count
// followed by the pretty-printed entries.
func FormatReport(sections map[string][]any) string {
	if len(sections) == 0 {
		return "Nothing to do."
	}
	total := 0
	var buf bytes.Buffer
	for name, entries := range sections {
		if len(entries) == 0 {
			continue
		}
		total += len(entries)
		fmt.Fprintf(&buf, "%s: %d\n", name, len(entries))
		for _, entry := range entries {
			pretty, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				fmt.Fprintf(&buf, "%v\n", entry)
				continue
			}
			buf.Write(pretty)
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	if total == 0 {
		return "Nothing to do."
	}
	return buf.String()
}
