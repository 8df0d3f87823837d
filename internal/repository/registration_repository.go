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

const registrationColumns = `id, account_id, role, status, first_name, surname, id_number, date_of_birth, email, phone, address,
next_of_kin_name, next_of_kin_phone, disability, grade, class_name, electives, parent_name, parent_phone, parent_email,
department, grade_taught, subjects, id_document_url, proof_of_address_url, prior_report_url, proof_of_payment_url,
qualification_url, parent_id_url, reviewed_by, reviewed_at, decline_reason, created_at, updated_at`

// RegistrationRepository persists registration applications keyed by account.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Upsert inserts the registration or overwrites the row of the same account.
// Review columns are reset on overwrite.
func (r *RegistrationRepository) Upsert(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	const query = `INSERT INTO registrations (id, account_id, role, status, first_name, surname, id_number, date_of_birth, email, phone, address,
next_of_kin_name, next_of_kin_phone, disability, grade, class_name, electives, parent_name, parent_phone, parent_email,
department, grade_taught, subjects, id_document_url, proof_of_address_url, prior_report_url, proof_of_payment_url,
qualification_url, parent_id_url, created_at, updated_at)
VALUES (:id, :account_id, :role, :status, :first_name, :surname, :id_number, :date_of_birth, :email, :phone, :address,
:next_of_kin_name, :next_of_kin_phone, :disability, :grade, :class_name, :electives, :parent_name, :parent_phone, :parent_email,
:department, :grade_taught, :subjects, :id_document_url, :proof_of_address_url, :prior_report_url, :proof_of_payment_url,
:qualification_url, :parent_id_url, :created_at, :updated_at)
ON CONFLICT (account_id)
DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status, first_name = EXCLUDED.first_name, surname = EXCLUDED.surname,
              id_number = EXCLUDED.id_number, date_of_birth = EXCLUDED.date_of_birth, email = EXCLUDED.email, phone = EXCLUDED.phone,
              address = EXCLUDED.address, next_of_kin_name = EXCLUDED.next_of_kin_name, next_of_kin_phone = EXCLUDED.next_of_kin_phone,
              disability = EXCLUDED.disability, grade = EXCLUDED.grade, class_name = EXCLUDED.class_name, electives = EXCLUDED.electives,
              parent_name = EXCLUDED.parent_name, parent_phone = EXCLUDED.parent_phone, parent_email = EXCLUDED.parent_email,
              department = EXCLUDED.department, grade_taught = EXCLUDED.grade_taught, subjects = EXCLUDED.subjects,
              id_document_url = EXCLUDED.id_document_url, proof_of_address_url = EXCLUDED.proof_of_address_url,
              prior_report_url = EXCLUDED.prior_report_url, proof_of_payment_url = EXCLUDED.proof_of_payment_url,
              qualification_url = EXCLUDED.qualification_url, parent_id_url = EXCLUDED.parent_id_url,
              reviewed_by = NULL, reviewed_at = NULL, decline_reason = NULL, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return fmt.Errorf("upsert registration: %w", err)
	}
	return nil
}

// FindByAccountID returns the registration of an account.
func (r *RegistrationRepository) FindByAccountID(ctx context.Context, accountID string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE account_id = $1 LIMIT 1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find registration by account: %w", err)
	}
	return &reg, nil
}

// FindByID returns a registration by identifier.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 LIMIT 1`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find registration by id: %w", err)
	}
	return &reg, nil
}

// UpdateStatus records a review decision. Returns sql.ErrNoRows when the id is unknown.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, reviewerID string, reason *string, at time.Time) error {
	const query = `UPDATE registrations SET status = $2, reviewed_by = $3, reviewed_at = $4, decline_reason = $5, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, reviewerID, at, reason)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns one page of registrations with the total count.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, int, error) {
	where, args := registrationWhere(filter)
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM registrations%s ORDER BY created_at DESC LIMIT %d OFFSET %d", registrationColumns, where, size, offset)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM registrations"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return regs, total, nil
}

// ListAll returns every registration matching the filter, ignoring paging.
func (r *RegistrationRepository) ListAll(ctx context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	where, args := registrationWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM registrations%s ORDER BY surname, first_name", registrationColumns, where)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list all registrations: %w", err)
	}
	return regs, nil
}

func registrationWhere(filter models.RegistrationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
