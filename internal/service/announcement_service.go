package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateAnnouncementRequest describes create payload. An empty audience
// addresses every role.
type CreateAnnouncementRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Body     string   `json:"body" validate:"required"`
	Audience []string `json:"audience"`
	Grade    *string  `json:"grade"`
}

// List returns the latest announcements addressed to role.
func (s *AnnouncementService) List(ctx context.Context, role models.Role, limit int) ([]models.Announcement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.repo.List(ctx, models.AnnouncementFilter{Role: role, Limit: limit})
	if err != nil {
		return nil, appErrors.Remote(err, "failed to list announcements")
	}
	return rows, nil
}

// Create posts an announcement authored by actor.
func (s *AnnouncementService) Create(ctx context.Context, actor AccessState, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	audience := make([]string, 0, len(req.Audience))
	seen := make(map[models.Role]bool, len(req.Audience))
	for _, raw := range req.Audience {
		role, err := models.ParseRole(raw)
		if err != nil {
			return nil, appErrors.Field("audience", err.Error())
		}
		if !seen[role] {
			seen[role] = true
			audience = append(audience, string(role))
		}
	}
	announcement := &models.Announcement{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(req.Title),
		Body:       strings.TrimSpace(req.Body),
		Audience:   audience,
		Grade:      optionalPtr(req.Grade),
		AuthorID:   actor.AccountID,
		AuthorRole: actor.Role,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Remote(err, "failed to create announcement")
	}
	s.logger.Info("announcement posted", zap.String("announcement_id", announcement.ID), zap.String("author_role", string(actor.Role)), zap.Strings("audience", audience))
	return announcement, nil
}

func optionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return optional(*s)
}

func forbiddenf(format string, args ...interface{}) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf(format, args...))
}
