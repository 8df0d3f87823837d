package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

const complaintColumns = `id, learner_id, subject, body, status, response, responded_by, responded_at, created_at`

// ComplaintRepository persists learner complaints.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository creates the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a complaint.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = time.Now().UTC()
	}
	if complaint.Status == "" {
		complaint.Status = models.ComplaintOpen
	}
	const query = `INSERT INTO complaints (id, learner_id, subject, body, status, created_at) VALUES (:id, :learner_id, :subject, :body, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// GetByID returns a complaint by identifier.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get complaint: %w", err)
	}
	return &complaint, nil
}

// List returns complaints newest first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	var conditions []string
	var args []interface{}
	if filter.LearnerID != "" {
		args = append(args, filter.LearnerID)
		conditions = append(conditions, fmt.Sprintf("learner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// Respond stores a staff reply and marks the complaint responded.
func (r *ComplaintRepository) Respond(ctx context.Context, id, response, responderID string, at time.Time) error {
	const query = `UPDATE complaints SET response = $2, responded_by = $3, responded_at = $4, status = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, response, responderID, at, models.ComplaintResponded)
	if err != nil {
		return fmt.Errorf("respond complaint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
