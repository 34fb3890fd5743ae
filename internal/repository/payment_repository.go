package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-billing-api/internal/models"
)

const paymentColumns = `id, enrollment_id, student_id, course_id, registration_fee, total_due, total_paid, payment_status,
       installments, refund_reason, refund_date, refunded_by, version, created_at, updated_at`

// PaymentRepository persists payment ledger records. Installments live in a
// JSONB column and every write is guarded by the version column.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment. A second payment for the same (student, course)
// violates the unique constraint and surfaces as a pq 23505 error.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = models.PaymentStatusPending
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	payment.Version = 1
	const query = `INSERT INTO payments
	(id, enrollment_id, student_id, course_id, registration_fee, total_due, total_paid, payment_status, installments,
	 refund_reason, refund_date, refunded_by, version, created_at, updated_at)
	VALUES (:id, :enrollment_id, :student_id, :course_id, :registration_fee, :total_due, :total_paid, :payment_status,
	 :installments, :refund_reason, :refund_date, :refunded_by, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID fetches a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByEnrollment fetches the payment linked to an enrollment request.
func (r *PaymentRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE enrollment_id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, enrollmentID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, paymentColumns, clause, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListWithUnpaidInstallments returns payments still carrying at least one unpaid installment.
func (r *PaymentRepository) ListWithUnpaidInstallments(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments
	WHERE payment_status = 'pending' AND installments @> '[{"status":"unpaid"}]'
	ORDER BY created_at ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list unpaid payments: %w", err)
	}
	return payments, nil
}

// ListForStatistics returns the projection used for rollups.
func (r *PaymentRepository) ListForStatistics(ctx context.Context) ([]models.PaymentStatRow, error) {
	const query = `SELECT total_due, total_paid, payment_status FROM payments`
	var rows []models.PaymentStatRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list payment statistics rows: %w", err)
	}
	return rows, nil
}

// Update writes the mutable ledger columns when the stored version still
// matches payment.Version. A lost race returns sql.ErrNoRows. On success the
// in-memory version is advanced.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments
	SET total_paid = :total_paid, payment_status = :payment_status, installments = :installments,
	    refund_reason = :refund_reason, refund_date = :refund_date, refunded_by = :refunded_by,
	    version = version + 1, updated_at = :updated_at
	WHERE id = :id AND version = :version`
	result, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if err := requireAffected(result, "update payment"); err != nil {
		return err
	}
	payment.Version++
	return nil
}

// Delete removes a payment that never recorded money.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM payments WHERE id = $1 AND total_paid = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireAffected(result, "delete payment")
}
