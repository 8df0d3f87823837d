package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type balanceWriter interface {
	Upsert(ctx context.Context, balance *models.Balance) error
}

// SetBalanceRequest overwrites a learner's outstanding amount.
type SetBalanceRequest struct {
	LearnerName string   `json:"learnerName" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required"`
}

// BalanceService lets finance staff maintain learner balances.
type BalanceService struct {
	repo      balanceWriter
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBalanceService constructs a BalanceService.
func NewBalanceService(repo balanceWriter, validate *validator.Validate, logger *zap.Logger) *BalanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Set stores the learner's balance.
func (s *BalanceService) Set(ctx context.Context, learnerID, updaterID string, req SetBalanceRequest) (*models.Balance, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, appErrors.Field("learnerId", "learner is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	balance := &models.Balance{
		LearnerID:   learnerID,
		LearnerName: strings.TrimSpace(req.LearnerName),
		Amount:      *req.Amount,
		UpdatedBy:   updaterID,
		UpdatedAt:   s.now(),
	}
	if err := s.repo.Upsert(ctx, balance); err != nil {
		return nil, appErrors.Remote(err, "failed to update balance")
	}
	s.logger.Info("balance updated", zap.String("learner_id", learnerID), zap.Float64("amount", balance.Amount))
	return balance, nil
}
