package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// BalanceRepository stores learner fee balances.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Upsert sets the balance of a learner.
func (r *BalanceRepository) Upsert(ctx context.Context, balance *models.Balance) error {
	balance.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO balances (learner_id, learner_name, amount, updated_by, updated_at)
VALUES (:learner_id, :learner_name, :amount, :updated_by, :updated_at)
ON CONFLICT (learner_id)
DO UPDATE SET learner_name = EXCLUDED.learner_name, amount = EXCLUDED.amount,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, balance); err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// Get returns the balance of a learner.
func (r *BalanceRepository) Get(ctx context.Context, learnerID string) (*models.Balance, error) {
	const query = `SELECT learner_id, learner_name, amount, updated_by, updated_at FROM balances WHERE learner_id = $1`
	var balance models.Balance
	if err := r.db.GetContext(ctx, &balance, query, learnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &balance, nil
}

// List returns every learner balance.
func (r *BalanceRepository) List(ctx context.Context) ([]models.Balance, error) {
	const query = `SELECT learner_id, learner_name, amount, updated_by, updated_at FROM balances ORDER BY learner_name`
	var balances []models.Balance
	if err := r.db.SelectContext(ctx, &balances, query); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}
