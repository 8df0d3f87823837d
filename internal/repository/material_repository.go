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

// MaterialRepository stores metadata of uploaded learning materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// Create inserts a material row.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO materials (id, title, category, subject, grade, bucket, path, file_name, content_type, size_bytes, uploaded_by, created_at)
VALUES (:id, :title, :category, :subject, :grade, :bucket, :path, :file_name, :content_type, :size_bytes, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// List returns materials matching the filter, newest first.
func (r *MaterialRepository) List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	var conditions []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("category", filter.Category)
	add("subject", filter.Subject)
	add("grade", filter.Grade)

	query := `SELECT id, title, category, subject, grade, bucket, path, file_name, content_type, size_bytes, uploaded_by, created_at FROM materials`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var materials []models.Material
	if err := r.db.SelectContext(ctx, &materials, query, args...); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}
