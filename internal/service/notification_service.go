package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/templates"
	"github.com/noah-isme/school-intake-api/pkg/mailer"
	appErrors "github.com/noah-isme/school-intake-api/pkg/errors"
)

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// NotificationConfig configures the notification email.
type NotificationConfig struct {
	From       string
	Recipients []string
	Subject    string
	BrandName  string
}

// NotificationService emails the team about each new inquiry.
type NotificationService struct {
	sender mailSender
	cfg    NotificationConfig
	tmpl   *template.Template
	logger *zap.Logger
	now    func() time.Time
}

type notificationView struct {
	BrandName   string
	SubmittedOn string
	School      models.School
	Teachers    []models.Teacher
	RecordID    string
	RecordURL   string
	DocumentURL string
}

// NewNotificationService parses the embedded notification template.
func NewNotificationService(sender mailSender, cfg NotificationConfig, logger *zap.Logger) (*NotificationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Subject == "" {
		cfg.Subject = "New school partnership inquiry"
	}
	tmpl, err := templates.Parse(templates.Notification)
	if err != nil {
		return nil, fmt.Errorf("parse notification template: %w", err)
	}
	return &NotificationService{sender: sender, cfg: cfg, tmpl: tmpl, logger: logger, now: time.Now}, nil
}

// Enabled reports whether a sender and recipients are configured.
func (s *NotificationService) Enabled() bool {
	return s != nil && s.sender != nil && s.cfg.From != "" && len(s.cfg.Recipients) > 0
}

// Compose renders the email for a submission without sending it.
func (s *NotificationService) Compose(school models.School, teachers []models.Teacher, recordID, recordURL, documentURL string) (mailer.Message, error) {
	buf := &bytes.Buffer{}
	err := s.tmpl.Execute(buf, notificationView{
		BrandName:   s.cfg.BrandName,
		SubmittedOn: s.now().Format("January 2, 2006 15:04 MST"),
		School:      school,
		Teachers:    teachers,
		RecordID:    recordID,
		RecordURL:   recordURL,
		DocumentURL: documentURL,
	})
	if err != nil {
		return mailer.Message{}, fmt.Errorf("execute notification template: %w", err)
	}
	return mailer.Message{
		To:       append([]string(nil), s.cfg.Recipients...),
		ReplyTo:  school.ContactEmail,
		Subject:  fmt.Sprintf("%s: %s", s.cfg.Subject, school.Name),
		HTMLBody: buf.String(),
	}, nil
}

// Notify sends one email to the configured recipients with the contact as reply-to. It returns
// appErrors.ErrDisabled when sending is not configured.
func (s *NotificationService) Notify(ctx context.Context, school models.School, teachers []models.Teacher, recordID, recordURL, documentURL string) error {
	if !s.Enabled() {
		return appErrors.Clone(appErrors.ErrDisabled, "notification email not configured")
	}
	msg, err := s.Compose(school, teachers, recordID, recordURL, documentURL)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemoteService.Code, appErrors.ErrRemoteService.Status, "failed to send notification email")
	}
	s.logger.Info("notification sent", zap.String("school", school.Name), zap.Int("recipients", len(msg.To)))
	return nil
}
