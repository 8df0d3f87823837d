package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/school-portal-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Validate reports whether the message can be delivered.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("message has no subject")
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("message has no body")
	}
	return nil
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msgs ...Message) error
}

// New picks the transport named by cfg.Driver ("smtp" or "console").
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Driver == "smtp" {
		return NewSMTPMailer(cfg)
	}
	return NewConsoleMailer(cfg.From, logger)
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds an SMTP transport.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers all messages over one SMTP connection.
func (m *SMTPMailer) Send(ctx context.Context, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepared := make([]*gomail.Message, 0, len(msgs))
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return err
		}
		prepared = append(prepared, m.build(msg))
	}
	if len(prepared) == 0 {
		return nil
	}
	if err := m.dialer.DialAndSend(prepared...); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To...)
	gm.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		gm.SetBody("text/plain", msg.TextBody)
		gm.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		gm.SetBody("text/html", msg.HTMLBody)
	default:
		gm.SetBody("text/plain", msg.TextBody)
	}
	return gm
}

// ConsoleMailer logs messages instead of sending them. Used in development.
type ConsoleMailer struct {
	from   string
	logger *zap.Logger
}

// NewConsoleMailer builds a logging transport.
func NewConsoleMailer(from string, logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{from: from, logger: logger}
}

// Send logs each message.
func (m *ConsoleMailer) Send(ctx context.Context, msgs ...Message) error {
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return err
		}
		m.logger.Info("mail",
			zap.String("from", m.from),
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.TextBody),
		)
	}
	return nil
}
