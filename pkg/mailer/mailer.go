// Package mailer sends HTML notification emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Config holds SMTP settings and the sender identity.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Message is one outgoing email.
type Message struct {
	To       []string
	ReplyTo  string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMTPSender delivers messages through a single SMTP relay.
type SMTPSender struct {
	cfg    Config
	logger *zap.Logger
}

// NewSMTPSender constructs a sender.
func NewSMTPSender(cfg Config, logger *zap.Logger) *SMTPSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Build assembles msg without sending it. A malformed reply-to is dropped rather than failing.
func (s *SMTPSender) Build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			s.logger.Warn("ignoring invalid reply-to", zap.String("reply_to", msg.ReplyTo), zap.Error(err))
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	if msg.TextBody != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.TextBody)
	}
	return m, nil
}

// Render returns the raw RFC 5322 bytes for msg, used by the CLI dry run.
func (s *SMTPSender) Render(msg Message) ([]byte, error) {
	m, err := s.Build(msg)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if _, err := m.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	return buf.Bytes(), nil
}

// Send builds msg and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.Build(msg)
	if err != nil {
		return err
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	s.logger.Info("notification email sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
