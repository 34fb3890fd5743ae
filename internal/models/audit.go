package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionEnrollmentCreate   = "create_enrollment"
	AuditActionEnrollmentApprove  = "approve_enrollment"
	AuditActionEnrollmentReject   = "reject_enrollment"
	AuditActionEnrollmentDelete   = "delete_enrollment"
	AuditActionEnrollmentExpire   = "expire_enrollment"
	AuditActionRegistrationFee    = "registration_fee_paid"
	AuditActionRegistrationUnpaid = "registration_fee_refunded"
	AuditActionPaymentCreate      = "create_payment"
	AuditActionInstallmentUpdate  = "update_installment"
	AuditActionPaymentRefund      = "refund_payment"
	AuditActionPaymentDelete      = "delete_payment"
	AuditActionTemplateUpsert     = "upsert_installment_template"
	AuditActionTemplateDelete     = "delete_installment_template"
	AuditActionCenterSettingsEdit = "update_center_settings"
)

// Audit target types.
const (
	AuditTargetEnrollment = "enrollment_request"
	AuditTargetPayment    = "payment"
	AuditTargetTemplate   = "installment_template"
	AuditTargetSettings   = "center_settings"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
