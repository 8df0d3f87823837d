package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	Respond(ctx context.Context, id, response, responderID string, at time.Time) error
}

// FileComplaintRequest is a learner's complaint.
type FileComplaintRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

// RespondComplaintRequest is a staff reply.
type RespondComplaintRequest struct {
	Response string `json:"response" validate:"required"`
}

// ComplaintService lets learners raise complaints and pastoral staff answer them.
type ComplaintService struct {
	repo      complaintRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewComplaintService constructs a ComplaintService.
func NewComplaintService(repo complaintRepository, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// File stores a new open complaint for the learner.
func (s *ComplaintService) File(ctx context.Context, learnerID string, req FileComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	complaint := &models.Complaint{
		ID:        uuid.NewString(),
		LearnerID: learnerID,
		Subject:   strings.TrimSpace(req.Subject),
		Body:      strings.TrimSpace(req.Body),
		Status:    models.ComplaintOpen,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Remote(err, "failed to file complaint")
	}
	return complaint, nil
}

// List returns the learner's own complaints, or every complaint for responders.
func (s *ComplaintService) List(ctx context.Context, actor AccessState, status models.ComplaintStatus) ([]models.Complaint, error) {
	filter := models.ComplaintFilter{Status: status}
	switch {
	case actor.Role == models.RoleLearner:
		filter.LearnerID = actor.AccountID
	case models.HasRole(models.ComplaintResponse, actor.Role):
	default:
		return nil, forbiddenf("%s cannot view complaints", actor.Role.Label())
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Remote(err, "failed to list complaints")
	}
	return rows, nil
}

// Respond answers an open complaint.
func (s *ComplaintService) Respond(ctx context.Context, id, responderID string, req RespondComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	complaint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Remote(err, "failed to load complaint")
	}
	if complaint.Status == models.ComplaintResponded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "complaint already has a response")
	}

	at := s.now()
	response := strings.TrimSpace(req.Response)
	if err := s.repo.Respond(ctx, id, response, responderID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Remote(err, "failed to respond to complaint")
	}
	complaint.Status = models.ComplaintResponded
	complaint.Response = &response
	complaint.RespondedBy = &responderID
	complaint.RespondedAt = &at
	return complaint, nil
}
