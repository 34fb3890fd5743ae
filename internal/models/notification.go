package models

// NotificationKind enumerates the messages sent to students.
type NotificationKind string

const (
	NotificationEnrollmentApproved NotificationKind = "enrollment.approved"
	NotificationEnrollmentRejected NotificationKind = "enrollment.rejected"
	NotificationInstallmentPaid    NotificationKind = "payment.installment_paid"
	NotificationPaymentRefunded    NotificationKind = "payment.refunded"
)

// Notification is an outbound message; the body is plain formatted text.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	RecipientID string           `json:"recipient_id"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
}
