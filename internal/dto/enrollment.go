package dto

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-billing-api/internal/models"
)

// CreateEnrollmentRequest is submitted by a student (or by an admin on their behalf).
type CreateEnrollmentRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id" validate:"required"`
}

// ApproveEnrollmentRequest carries the admin decision for approval.
type ApproveEnrollmentRequest struct {
	ClassID    string `json:"class_id"`
	AdminNotes string `json:"admin_notes"`
}

// RejectEnrollmentRequest carries the admin decision for rejection.
type RejectEnrollmentRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// EnrollmentResponse bundles a request with its payment ledger record.
type EnrollmentResponse struct {
	Enrollment *models.EnrollmentRequestDetail `json:"enrollment"`
	Payment    *models.Payment                 `json:"payment,omitempty"`
}

// ApprovalCheck lists every failing approval condition at once.
type ApprovalCheck struct {
	CanApprove bool     `json:"can_approve"`
	Failed     []string `json:"failed,omitempty"`
}

// DeleteEnrollmentResult reports what happened to the linked payment.
type DeleteEnrollmentResult struct {
	EnrollmentID  string           `json:"enrollment_id"`
	Refunded      bool             `json:"refunded"`
	RefundAmount  *decimal.Decimal `json:"refund_amount,omitempty"`
	PaymentStatus string           `json:"payment_status,omitempty"`
}

// ExpireEnrollmentsResult summarises a stale-request sweep.
type ExpireEnrollmentsResult struct {
	Expired []string `json:"expired"`
}
