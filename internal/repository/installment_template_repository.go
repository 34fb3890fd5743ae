package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-billing-api/internal/models"
)

// InstallmentTemplateRepository stores one installment template per course.
type InstallmentTemplateRepository struct {
	db *sqlx.DB
}

// NewInstallmentTemplateRepository constructs the repository.
func NewInstallmentTemplateRepository(db *sqlx.DB) *InstallmentTemplateRepository {
	return &InstallmentTemplateRepository{db: db}
}

// FindByCourse returns the template of a course or sql.ErrNoRows.
func (r *InstallmentTemplateRepository) FindByCourse(ctx context.Context, courseID string) (*models.InstallmentTemplate, error) {
	const query = `SELECT id, course_id, entries, updated_by, updated_at FROM installment_templates WHERE course_id = $1`
	var tpl models.InstallmentTemplate
	if err := r.db.GetContext(ctx, &tpl, query, courseID); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Upsert replaces the template of a course.
func (r *InstallmentTemplateRepository) Upsert(ctx context.Context, tpl *models.InstallmentTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO installment_templates (id, course_id, entries, updated_by, updated_at)
VALUES (:id, :course_id, :entries, :updated_by, :updated_at)
ON CONFLICT (course_id)
DO UPDATE SET entries = EXCLUDED.entries, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, tpl)
	if err != nil {
		return fmt.Errorf("upsert installment template: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&tpl.ID); err != nil {
			return fmt.Errorf("scan installment template id: %w", err)
		}
	}
	return rows.Err()
}

// DeleteByCourse removes the template of a course.
func (r *InstallmentTemplateRepository) DeleteByCourse(ctx context.Context, courseID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM installment_templates WHERE course_id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("delete installment template: %w", err)
	}
	return requireAffected(result, "delete installment template")
}
