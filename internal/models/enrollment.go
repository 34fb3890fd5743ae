package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses. EnrollmentStatusDeleted is never persisted; it
// is reported when a request no longer exists.
const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
	EnrollmentStatusDeleted  EnrollmentStatus = "deleted"
)

// Active reports whether the status blocks a new request for the same course.
func (s EnrollmentStatus) Active() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// EnrollmentRequest captures a student's request to join a course.
type EnrollmentRequest struct {
	ID                  string           `db:"id" json:"id"`
	StudentID           string           `db:"student_id" json:"student_id"`
	CourseID            string           `db:"course_id" json:"course_id"`
	Status              EnrollmentStatus `db:"status" json:"status"`
	RequestDate         time.Time        `db:"request_date" json:"request_date"`
	ApprovalDate        *time.Time       `db:"approval_date" json:"approval_date,omitempty"`
	AssignedClassID     *string          `db:"assigned_class_id" json:"assigned_class_id,omitempty"`
	AdminNotes          *string          `db:"admin_notes" json:"admin_notes,omitempty"`
	AssignedBy          *string          `db:"assigned_by" json:"assigned_by,omitempty"`
	RegistrationFeePaid bool             `db:"registration_fee_paid" json:"registration_fee_paid"`
	PaymentDate         *time.Time       `db:"payment_date" json:"payment_date,omitempty"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// ExpiresAt returns when a pending request with an unpaid fee lapses.
func (e *EnrollmentRequest) ExpiresAt(validityHours int) *time.Time {
	if e == nil || validityHours <= 0 || e.Status != EnrollmentStatusPending || e.RegistrationFeePaid {
		return nil
	}
	at := e.RequestDate.Add(time.Duration(validityHours) * time.Hour)
	return &at
}

// EnrollmentRequestDetail enriches a request with course info.
type EnrollmentRequestDetail struct {
	EnrollmentRequest
	CourseName string     `db:"course_name" json:"course_name"`
	ClassName  *string    `db:"class_name" json:"class_name,omitempty"`
	ExpiresAt  *time.Time `db:"-" json:"expires_at,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollment requests.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ApproveEnrollmentParams groups the columns written on approval.
type ApproveEnrollmentParams struct {
	ID           string
	ClassID      string
	AdminNotes   string
	AssignedBy   string
	ApprovalDate time.Time
}

// RejectEnrollmentParams groups the columns written on rejection.
// RequireFeeUnpaid restricts the update to rows whose fee is still unpaid.
type RejectEnrollmentParams struct {
	ID               string
	AdminNotes       string
	AssignedBy       string
	RejectedAt       time.Time
	RequireFeeUnpaid bool
}
