package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type syncNotifier interface {
	InvokeSync(ctx context.Context, fn NotificationFunction, payload interface{}) error
}

// BulkMailRequest is an admin broadcast.
type BulkMailRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,max=500,dive,email"`
	Subject    string   `json:"subject" validate:"required,max=200"`
	Body       string   `json:"body" validate:"required"`
}

// MailService sends admin bulk email. Delivery errors reach the caller.
type MailService struct {
	notifier  syncNotifier
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMailService constructs a MailService.
func NewMailService(notify syncNotifier, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *MailService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{notifier: notify, audit: audit, validator: validate, logger: logger}
}

// SendBulk delivers the message to every recipient and returns the number sent.
func (s *MailService) SendBulk(ctx context.Context, senderID string, req BulkMailRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	recipients := dedupeEmails(req.Recipients)
	payload := BulkEmailPayload{Recipients: recipients, Subject: strings.TrimSpace(req.Subject), Body: req.Body}
	if err := s.notifier.InvokeSync(ctx, NotifyBulkEmail, payload); err != nil {
		s.logger.Warn("bulk email failed", zap.Int("recipients", len(recipients)), zap.Error(err))
		return 0, err
	}
	if s.audit != nil {
		values := fmt.Sprintf(`{"recipients":%d,"subject":%q}`, len(recipients), payload.Subject)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    &senderID,
			Action:    models.AuditActionWrite,
			Resource:  "bulk_email",
			NewValues: []byte(values),
		}); err != nil {
			s.logger.Warn("failed to record bulk email audit log", zap.Error(err))
		}
	}
	return len(recipients), nil
}

func dedupeEmails(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
