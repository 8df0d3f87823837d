package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
	"github.com/noah-isme/school-portal-api/pkg/mailer"
)

// NotificationFunction names a mail template the portal can invoke.
type NotificationFunction string

const (
	NotifyRegistrationConfirmation NotificationFunction = "registration-confirmation"
	NotifyPasswordReset            NotificationFunction = "password-reset"
	NotifyBulkEmail                NotificationFunction = "bulk-email"
)

// RegistrationConfirmationPayload feeds the registration-confirmation mail.
type RegistrationConfirmationPayload struct {
	Email    string
	FullName string
	Role     models.Role
	Status   models.RegistrationStatus
}

// PasswordResetPayload feeds the password-reset mail.
type PasswordResetPayload struct {
	Email    string
	FullName string
	ResetURL string
}

// BulkEmailPayload feeds the bulk-email mail.
type BulkEmailPayload struct {
	Recipients []string
	Subject    string
	Body       string
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type notificationMetrics interface {
	RecordNotification(fn NotificationFunction, err error)
}

// NotificationService renders notification mails and hands them to the mailer,
// either through the background queue or inline.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   jobEnqueuer
	metrics notificationMetrics
	logger  *zap.Logger
}

// NewNotificationService constructs the service. The queue may be attached later with UseQueue.
func NewNotificationService(m mailer.Mailer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, logger: logger}
}

// UseQueue routes Invoke through q.
func (s *NotificationService) UseQueue(q jobEnqueuer) {
	s.queue = q
}

// UseMetrics reports every delivery attempt to m.
func (s *NotificationService) UseMetrics(m notificationMetrics) {
	s.metrics = m
}

// HandleJob is the jobs.Handler that delivers queued notifications.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	msgs, ok := job.Payload.([]mailer.Message)
	if !ok {
		return fmt.Errorf("notification job %s: unexpected payload %T", job.ID, job.Payload)
	}
	err := s.mailer.Send(ctx, msgs...)
	s.observe(NotificationFunction(job.Type), err)
	return err
}

// Invoke dispatches the notification in the background. Only rendering or
// enqueue failures are returned; delivery failures are logged by the queue.
func (s *NotificationService) Invoke(ctx context.Context, fn NotificationFunction, payload interface{}) error {
	msgs, err := s.render(fn, payload)
	if err != nil {
		return err
	}
	if s.queue == nil {
		go func() {
			err := s.mailer.Send(context.Background(), msgs...)
			s.observe(fn, err)
			if err != nil {
				s.logger.Warn("notification delivery failed", zap.String("function", string(fn)), zap.Error(err))
			}
		}()
		return nil
	}
	job := jobs.Job{ID: uuid.NewString(), Type: string(fn), Payload: msgs}
	if err := s.queue.Enqueue(job); err != nil {
		return appErrors.Remote(err, fmt.Sprintf("failed to dispatch %s", fn))
	}
	return nil
}

// InvokeSync renders and delivers the notification before returning.
func (s *NotificationService) InvokeSync(ctx context.Context, fn NotificationFunction, payload interface{}) error {
	msgs, err := s.render(fn, payload)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, msgs...)
	s.observe(fn, err)
	if err != nil {
		return appErrors.Remote(err, fmt.Sprintf("failed to send %s", fn))
	}
	return nil
}

func (s *NotificationService) observe(fn NotificationFunction, err error) {
	if s.metrics != nil {
		s.metrics.RecordNotification(fn, err)
	}
}

func (s *NotificationService) render(fn NotificationFunction, payload interface{}) ([]mailer.Message, error) {
	switch fn {
	case NotifyRegistrationConfirmation:
		p, ok := payload.(RegistrationConfirmationPayload)
		if !ok {
			break
		}
		body := fmt.Sprintf("Hi %s,\n\nWe received your registration as %s.\n\n%s\n", p.FullName, p.Role.Label(), CompletionMessage(p.Role))
		return []mailer.Message{{To: []string{p.Email}, Subject: "Registration received", TextBody: body}}, nil
	case NotifyPasswordReset:
		p, ok := payload.(PasswordResetPayload)
		if !ok {
			break
		}
		body := fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password:\n%s\n\nIf you did not ask for this, ignore this email.\n", p.FullName, p.ResetURL)
		return []mailer.Message{{To: []string{p.Email}, Subject: "Reset your password", TextBody: body}}, nil
	case NotifyBulkEmail:
		p, ok := payload.(BulkEmailPayload)
		if !ok {
			break
		}
		msgs := make([]mailer.Message, 0, len(p.Recipients))
		for _, to := range p.Recipients {
			if strings.TrimSpace(to) == "" {
				continue
			}
			msgs = append(msgs, mailer.Message{To: []string{to}, Subject: p.Subject, TextBody: p.Body})
		}
		if len(msgs) == 0 {
			return nil, appErrors.Field("recipients", "at least one recipient is required")
		}
		return msgs, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown notification function %q", fn))
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("invalid payload %T for %s", payload, fn))
}
