package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

type reviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, reviewerID string, reason *string, at time.Time) error
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error)
	ListAll(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error)
}

type reviewMetrics interface {
	RecordReviewDecision(status models.RegistrationStatus)
}

var rosterColumns = []string{"Surname", "First name", "Role", "Status", "Email", "Phone", "Grade", "Submitted"}

// ReviewService lets reviewers approve, decline and export registrations.
type ReviewService struct {
	repo    reviewRepository
	audit   auditRecorder
	metrics reviewMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo reviewRepository, audit auditRecorder, metrics reviewMetrics, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, audit: audit, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns one page of registrations.
func (s *ReviewService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Field("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Remote(err, "failed to list registrations")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Approve marks a registration approved.
func (s *ReviewService) Approve(ctx context.Context, id, reviewerID string) (*models.Registration, error) {
	return s.decide(ctx, id, reviewerID, models.RegistrationApproved, nil)
}

// Decline marks a registration declined with an optional reason.
func (s *ReviewService) Decline(ctx context.Context, id, reviewerID, reason string) (*models.Registration, error) {
	return s.decide(ctx, id, reviewerID, models.RegistrationDeclined, optional(reason))
}

func (s *ReviewService) decide(ctx context.Context, id, reviewerID string, status models.RegistrationStatus, reason *string) (*models.Registration, error) {
	reg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Remote(err, "failed to load registration")
	}
	if reg.Status == status {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("registration is already %s", status))
	}

	at := s.now()
	if err := s.repo.UpdateStatus(ctx, id, status, reviewerID, reason, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Remote(err, "failed to update registration")
	}
	reg.Status = status
	reg.ReviewedBy = &reviewerID
	reg.ReviewedAt = &at
	reg.DeclineReason = reason

	if s.metrics != nil {
		s.metrics.RecordReviewDecision(status)
	}
	s.recordAudit(ctx, reg, reviewerID)
	s.logger.Info("registration reviewed", zap.String("registration_id", id), zap.String("status", string(status)), zap.String("reviewer_id", reviewerID))
	return reg, nil
}

// Export renders every registration matching filter as a roster in format.
func (s *ReviewService) Export(ctx context.Context, filter models.RegistrationFilter, format export.Format) ([]byte, error) {
	regs, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Remote(err, "failed to load registrations")
	}
	table := export.Table{Title: rosterTitle(filter), Columns: rosterColumns, Rows: make([]map[string]string, 0, len(regs))}
	for _, r := range regs {
		table.Rows = append(table.Rows, map[string]string{
			"Surname":    r.Surname,
			"First name": r.FirstName,
			"Role":       r.Role.Label(),
			"Status":     string(r.Status),
			"Email":      r.Email,
			"Phone":      r.Phone,
			"Grade":      deref(r.Grade),
			"Submitted":  r.CreatedAt.Format("2006-01-02"),
		})
	}
	out, err := export.RendererFor(format).Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return out, nil
}

func (s *ReviewService) recordAudit(ctx context.Context, reg *models.Registration, reviewerID string) {
	if s.audit == nil {
		return
	}
	values := fmt.Sprintf(`{"status":%q}`, reg.Status)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionRegistrationReview,
		Resource:   "registration",
		ResourceID: &reg.ID,
		NewValues:  []byte(values),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}
}

func rosterTitle(filter models.RegistrationFilter) string {
	parts := []string{"Registration roster"}
	if filter.Role != "" {
		parts = append(parts, filter.Role.Label())
	}
	if filter.Status != "" {
		parts = append(parts, string(filter.Status))
	}
	return strings.Join(parts, " - ")
}
