package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AmountType tells how an installment amount was specified.
type AmountType string

const (
	AmountTypeFixed      AmountType = "fixed"
	AmountTypePercentage AmountType = "percentage"
)

// Valid reports whether the amount type is known.
func (a AmountType) Valid() bool {
	return a == AmountTypeFixed || a == AmountTypePercentage
}

// InstallmentStatus is the per-installment state.
type InstallmentStatus string

const (
	InstallmentUnpaid   InstallmentStatus = "unpaid"
	InstallmentPaid     InstallmentStatus = "paid"
	InstallmentRefunded InstallmentStatus = "refunded"
)

// Valid reports whether the installment status is known.
func (s InstallmentStatus) Valid() bool {
	switch s {
	case InstallmentUnpaid, InstallmentPaid, InstallmentRefunded:
		return true
	}
	return false
}

// PaymentStatus is the aggregate state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Sticky reports whether installment edits may no longer change the status.
func (s PaymentStatus) Sticky() bool {
	return s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

// Installment is one line of a payment schedule. Amount is always absolute;
// percentage entries are resolved when the payment is created.
type Installment struct {
	Name         string            `json:"name"`
	AmountType   AmountType        `json:"amount_type"`
	Amount       decimal.Decimal   `json:"amount"`
	Status       InstallmentStatus `json:"status"`
	DueDate      time.Time         `json:"due_date"`
	PaymentDate  *time.Time        `json:"payment_date,omitempty"`
	RefundDate   *time.Time        `json:"refund_date,omitempty"`
	IsInitialFee bool              `json:"is_initial_fee"`
}

// Overdue is a read-time classification; it is never stored.
func (i Installment) Overdue(now time.Time) bool {
	return i.Status == InstallmentUnpaid && i.DueDate.Before(now)
}

// Installments is persisted as a JSONB column.
type Installments []Installment

// Value implements driver.Valuer.
func (in Installments) Value() (driver.Value, error) {
	if in == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(in)
}

// Scan implements sql.Scanner.
func (in *Installments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*in = Installments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan installments: unsupported type %T", src)
	}
	var out Installments
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan installments: %w", err)
	}
	*in = out
	return nil
}

// Payment is the single ledger record per (student, course).
type Payment struct {
	ID              string          `db:"id" json:"id"`
	EnrollmentID    *string         `db:"enrollment_id" json:"enrollment_id,omitempty"`
	StudentID       string          `db:"student_id" json:"student_id"`
	CourseID        string          `db:"course_id" json:"course_id"`
	RegistrationFee decimal.Decimal `db:"registration_fee" json:"registration_fee"`
	TotalDue        decimal.Decimal `db:"total_due" json:"total_due"`
	TotalPaid       decimal.Decimal `db:"total_paid" json:"total_paid"`
	PaymentStatus   PaymentStatus   `db:"payment_status" json:"payment_status"`
	Installments    Installments    `db:"installments" json:"installments"`
	RefundReason    *string         `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundDate      *time.Time      `db:"refund_date" json:"refund_date,omitempty"`
	RefundedBy      *string         `db:"refunded_by" json:"refunded_by,omitempty"`
	Version         int             `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Installment returns the index of the named installment or -1.
func (p *Payment) Installment(name string) int {
	for i := range p.Installments {
		if p.Installments[i].Name == name {
			return i
		}
	}
	return -1
}

// InitialFee returns the registration fee installment, if present.
func (p *Payment) InitialFee() *Installment {
	for i := range p.Installments {
		if p.Installments[i].IsInitialFee {
			return &p.Installments[i]
		}
	}
	return nil
}

// InitialFeeCount returns how many installments are flagged as the initial fee.
func (p *Payment) InitialFeeCount() int {
	count := 0
	for _, inst := range p.Installments {
		if inst.IsInitialFee {
			count++
		}
	}
	return count
}

// PaidSum sums the amounts of installments currently paid.
func (p *Payment) PaidSum() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range p.Installments {
		if inst.Status == InstallmentPaid {
			sum = sum.Add(inst.Amount)
		}
	}
	return sum
}

// RecalculateTotals derives TotalPaid from installments and refreshes the
// status unless it is cancelled or refunded.
func (p *Payment) RecalculateTotals() {
	p.TotalPaid = p.PaidSum()
	if p.PaymentStatus.Sticky() {
		return
	}
	allPaid := len(p.Installments) > 0
	for _, inst := range p.Installments {
		if inst.Status != InstallmentPaid {
			allPaid = false
			break
		}
	}
	if allPaid {
		p.PaymentStatus = PaymentStatusCompleted
		return
	}
	p.PaymentStatus = PaymentStatusPending
}

// Outstanding returns what is still owed on the schedule.
func (p *Payment) Outstanding() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range p.Installments {
		if inst.Status == InstallmentUnpaid {
			sum = sum.Add(inst.Amount)
		}
	}
	return sum
}

// Clone returns a deep copy suitable for before/after comparisons.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Installments = make(Installments, len(p.Installments))
	copy(cp.Installments, p.Installments)
	return &cp
}

// PaymentFilter constrains payment listings.
type PaymentFilter struct {
	StudentID string
	CourseID  string
	Status    PaymentStatus
	Page      int
	PageSize  int
}

// OverdueInstallment reports an unpaid installment past its due date.
type OverdueInstallment struct {
	PaymentID    string          `json:"payment_id"`
	EnrollmentID *string         `json:"enrollment_id,omitempty"`
	StudentID    string          `json:"student_id"`
	CourseID     string          `json:"course_id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	DaysOverdue  int             `json:"days_overdue"`
}

// RefundResult is returned by refund operations.
type RefundResult struct {
	PaymentID     string          `json:"payment_id"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Refunded      bool            `json:"refunded"`
}
