package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type markRepository interface {
	Create(ctx context.Context, mark *models.Mark) error
}

// RecordMarkRequest is one assessment result.
type RecordMarkRequest struct {
	LearnerID   string  `json:"learnerId" validate:"required"`
	LearnerName string  `json:"learnerName" validate:"required"`
	Subject     string  `json:"subject" validate:"required"`
	Grade       string  `json:"grade" validate:"required"`
	ClassName   string  `json:"className"`
	Assessment  string  `json:"assessment" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0"`
	Total       float64 `json:"total" validate:"gt=0"`
}

// MarkService records assessment marks.
type MarkService struct {
	repo      markRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMarkService constructs a MarkService.
func NewMarkService(repo markRepository, validate *validator.Validate, logger *zap.Logger) *MarkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarkService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record stores a mark. Staff may only record marks for the subjects on their
// registration.
func (s *MarkService) Record(ctx context.Context, actor AccessState, req RecordMarkRequest) (*models.Mark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.Score > req.Total {
		return nil, appErrors.Field("score", "score cannot exceed the total")
	}
	subject := strings.TrimSpace(req.Subject)
	if actor.Registration == nil || len(nonBlank(actor.Registration.Subjects)) == 0 {
		return nil, forbiddenf("no subjects are registered for your account")
	}
	if !teaches(actor.Registration.Subjects, subject) {
		return nil, forbiddenf("you are not registered to teach %s", subject)
	}

	mark := &models.Mark{
		ID:          uuid.NewString(),
		LearnerID:   req.LearnerID,
		LearnerName: strings.TrimSpace(req.LearnerName),
		Subject:     subject,
		Grade:       strings.TrimSpace(req.Grade),
		ClassName:   strings.TrimSpace(req.ClassName),
		Assessment:  strings.TrimSpace(req.Assessment),
		Score:       req.Score,
		Total:       req.Total,
		RecordedBy:  actor.AccountID,
		RecordedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, mark); err != nil {
		return nil, appErrors.Remote(err, "failed to record mark")
	}
	return mark, nil
}

func teaches(subjects []string, subject string) bool {
	for _, s := range subjects {
		if strings.EqualFold(strings.TrimSpace(s), subject) {
			return true
		}
	}
	return false
}
