package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// MarkRepository stores assessment marks.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository creates the repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// Create inserts a mark.
func (r *MarkRepository) Create(ctx context.Context, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	if mark.RecordedAt.IsZero() {
		mark.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO marks (id, learner_id, learner_name, subject, grade, class_name, assessment, score, total, recorded_by, recorded_at)
VALUES (:id, :learner_id, :learner_name, :subject, :grade, :class_name, :assessment, :score, :total, :recorded_by, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("create mark: %w", err)
	}
	return nil
}

// List returns every mark in scope.
func (r *MarkRepository) List(ctx context.Context, filter models.MarkFilter) ([]models.Mark, error) {
	var conditions []string
	var args []interface{}
	if filter.LearnerID != "" {
		args = append(args, filter.LearnerID)
		conditions = append(conditions, fmt.Sprintf("learner_id = $%d", len(args)))
	}
	if filter.Grade != "" {
		args = append(args, filter.Grade)
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)))
	}
	if len(filter.Subjects) > 0 {
		args = append(args, pqStringArray(filter.Subjects))
		conditions = append(conditions, fmt.Sprintf("subject = ANY($%d)", len(args)))
	}

	query := `SELECT id, learner_id, learner_name, subject, grade, class_name, assessment, score, total, recorded_by, recorded_at FROM marks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY recorded_at"

	var marks []models.Mark
	if err := r.db.SelectContext(ctx, &marks, query, args...); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}
