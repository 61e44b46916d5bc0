package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/dj-oyu/people-count-monitor/internal/config"
)

// mailSender is the part of mail.Client used for delivery
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Email sends alerts over SMTP with implicit TLS
type Email struct {
	from   string
	to     string
	client mailSender
}

// NewEmail creates an SMTP notifier authenticating with PLAIN
func NewEmail(cfg config.EmailConfig, timeout time.Duration) (*Email, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Email{from: from, to: cfg.To, client: client}, nil
}

// Name implements Notifier
func (e *Email) Name() string { return "Email" }

func (e *Email) buildMessage(message string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", e.from, err)
	}
	if err := m.To(e.to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", e.to, err)
	}
	m.Subject(EmailSubject)
	m.SetBodyString(mail.TypeTextPlain, message)
	return m, nil
}

// Send delivers message to the configured recipient
func (e *Email) Send(ctx context.Context, message string) error {
	m, err := e.buildMessage(message)
	if err != nil {
		return err
	}
	if err := e.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	return nil
}
