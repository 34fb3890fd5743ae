package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-billing-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, status, request_date, approval_date, assigned_class_id,
       admin_notes, assigned_by, registration_fee_paid, payment_date, updated_at`

// EnrollmentRepository handles persistence of enrollment requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts a pending enrollment request. The unique partial index on
// (student_id, course_id) rejects a second active request.
func (r *EnrollmentRepository) Create(ctx context.Context, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.EnrollmentStatusPending
	}
	now := time.Now().UTC()
	if req.RequestDate.IsZero() {
		req.RequestDate = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO enrollment_requests
	(id, student_id, course_id, status, request_date, approval_date, assigned_class_id, admin_notes, assigned_by,
	 registration_fee_paid, payment_date, updated_at)
	VALUES (:id, :student_id, :course_id, :status, :request_date, :approval_date, :assigned_class_id, :admin_notes,
	 :assigned_by, :registration_fee_paid, :payment_date, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// FindByID returns an enrollment request by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests WHERE id = $1`, enrollmentColumns)
	var req models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindDetailByID returns an enrollment request with course and class names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.request_date, e.approval_date, e.assigned_class_id,
        e.admin_notes, e.assigned_by, e.registration_fee_paid, e.payment_date, e.updated_at,
        co.name AS course_name, cl.name AS class_name
        FROM enrollment_requests e
        JOIN courses co ON co.id = e.course_id
        LEFT JOIN classes cl ON cl.id = e.assigned_class_id
        WHERE e.id = $1`
	var detail models.EnrollmentRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns enrollment requests filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentRequestDetail, int, error) {
	base := `FROM enrollment_requests e
JOIN courses co ON co.id = e.course_id
LEFT JOIN classes cl ON cl.id = e.assigned_class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"request_date":  "e.request_date",
		"approval_date": "e.approval_date",
		"course_name":   "co.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.request_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.request_date, e.approval_date, e.assigned_class_id,
        e.admin_notes, e.assigned_by, e.registration_fee_paid, e.payment_date, e.updated_at,
        co.name AS course_name, cl.name AS class_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var requests []models.EnrollmentRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return requests, total, nil
}

// ExistsActive checks whether a pending or approved request exists for the pair.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM enrollment_requests
        WHERE student_id = $1 AND course_id = $2 AND status IN ('pending', 'approved'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

// Approve moves a pending request whose fee is paid to approved. It returns
// sql.ErrNoRows when the row no longer satisfies either condition.
func (r *EnrollmentRepository) Approve(ctx context.Context, params models.ApproveEnrollmentParams) error {
	const query = `UPDATE enrollment_requests
	SET status = 'approved', approval_date = :approval_date, assigned_class_id = :class_id,
	    admin_notes = :admin_notes, assigned_by = :assigned_by, updated_at = :approval_date
	WHERE id = :id AND status = 'pending' AND registration_fee_paid = TRUE`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"class_id":      params.ClassID,
		"admin_notes":   params.AdminNotes,
		"assigned_by":   params.AssignedBy,
		"approval_date": params.ApprovalDate,
	})
	if err != nil {
		return fmt.Errorf("approve enrollment request: %w", err)
	}
	return requireAffected(result, "approve enrollment request")
}

// Reject moves a pending request to rejected. With RequireFeeUnpaid set a
// request whose fee got paid in the meantime is left alone and
// sql.ErrNoRows is returned.
func (r *EnrollmentRepository) Reject(ctx context.Context, params models.RejectEnrollmentParams) error {
	query := `UPDATE enrollment_requests
	SET status = 'rejected', admin_notes = :admin_notes, assigned_by = :assigned_by, updated_at = :rejected_at
	WHERE id = :id AND status = 'pending'`
	if params.RequireFeeUnpaid {
		query += " AND registration_fee_paid = FALSE"
	}
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"admin_notes": params.AdminNotes,
		"assigned_by": params.AssignedBy,
		"rejected_at": params.RejectedAt,
	})
	if err != nil {
		return fmt.Errorf("reject enrollment request: %w", err)
	}
	return requireAffected(result, "reject enrollment request")
}

// MarkRegistrationFeePaid flips the fee flag once. It reports whether the row
// changed; a second call is a no-op returning false.
func (r *EnrollmentRepository) MarkRegistrationFeePaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const query = `UPDATE enrollment_requests SET registration_fee_paid = TRUE, payment_date = $2, updated_at = $2
	WHERE id = $1 AND registration_fee_paid = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, paidAt)
	if err != nil {
		return false, fmt.Errorf("mark registration fee paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check registration fee rows: %w", err)
	}
	return rows > 0, nil
}

// ClearRegistrationFeePaid drops the fee flag of a pending request whose fee
// was returned. It reports whether the row changed.
func (r *EnrollmentRepository) ClearRegistrationFeePaid(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE enrollment_requests SET registration_fee_paid = FALSE, payment_date = NULL, updated_at = $2
	WHERE id = $1 AND status = 'pending' AND registration_fee_paid = TRUE`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("clear registration fee flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check registration fee rows: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a request unless it is approved.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollment_requests WHERE id = $1 AND status <> 'approved'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment request: %w", err)
	}
	return requireAffected(result, "delete enrollment request")
}

// ListStalePending returns pending requests with an unpaid fee created before the cutoff.
func (r *EnrollmentRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.EnrollmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_requests
	WHERE status = 'pending' AND registration_fee_paid = FALSE AND request_date < $1
	ORDER BY request_date ASC`, enrollmentColumns)
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, cutoff); err != nil {
		return nil, fmt.Errorf("list stale enrollment requests: %w", err)
	}
	return requests, nil
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
