package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/campushub/apiserver/config"
)

// Mailer is the outbound mail capability. Delivery is best-effort and always
// happens outside the storage consistency boundary; callers log and swallow
// failures.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New selects a mailer implementation from config: "log" (development),
// "smtp" (direct delivery), or "queue" (publish to the mail queue; a
// mailworker process delivers).
func New(cfg config.Config, publish PublishFunc) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mail.Backend)) {
	case "", "log":
		return &LogMailer{}, nil
	case "smtp":
		return NewSMTPMailer(cfg.Mail), nil
	case "queue":
		if publish == nil {
			return nil, fmt.Errorf("queue mailer requires a broker")
		}
		return NewQueueMailer(cfg.Mail.Queue, publish), nil
	default:
		return nil, fmt.Errorf("unknown mailer backend %q", cfg.Mail.Backend)
	}
}

// LogMailer writes outbound mail to the process log instead of delivering it.
type LogMailer struct{}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// SMTPMailer delivers mail over a plain SMTP relay. The standard library
// client is used here; nothing heavier is needed for single-recipient
// transactional mail.
type SMTPMailer struct {
	addr string
	host string
	from string
	user string
	pass string
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		host: cfg.SMTPHost,
		from: cfg.From,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
	}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.from, to, subject, body)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	return smtp.SendMail(m.addr, auth, m.from, []string{to}, []byte(msg))
}
