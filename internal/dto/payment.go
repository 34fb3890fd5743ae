package dto

import (
	"time"

	"github.com/noah-isme/course-billing-api/internal/models"
)

// UpdateInstallmentRequest changes a single installment status.
type UpdateInstallmentRequest struct {
	Status      models.InstallmentStatus `json:"status" validate:"required,oneof=unpaid paid refunded"`
	PaymentDate *time.Time               `json:"payment_date,omitempty"`
}

// RefundPaymentRequest triggers a refund of an enrollment payment.
type RefundPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// PaymentActionCheck is the coordinator verdict on a ledger mutation.
type PaymentActionCheck struct {
	Allowed          bool                    `json:"allowed"`
	Message          string                  `json:"message"`
	EnrollmentStatus models.EnrollmentStatus `json:"enrollment_status"`
}

// DeletePaymentResult confirms the removal of a payment.
type DeletePaymentResult struct {
	PaymentID string `json:"payment_id"`
	Deleted   bool   `json:"deleted"`
}
