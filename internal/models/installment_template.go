package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TemplateEntry is one authored installment definition.
type TemplateEntry struct {
	Name          string          `json:"name" validate:"required,max=100"`
	AmountType    AmountType      `json:"amount_type" validate:"required,oneof=fixed percentage"`
	Amount        decimal.Decimal `json:"amount"`
	DueOffsetDays int             `json:"due_offset_days" validate:"gte=0"`
}

// TemplateEntries is persisted as a JSONB column.
type TemplateEntries []TemplateEntry

// Value implements driver.Valuer.
func (t TemplateEntries) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *TemplateEntries) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = TemplateEntries{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan template entries: unsupported type %T", src)
	}
	var out TemplateEntries
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan template entries: %w", err)
	}
	*t = out
	return nil
}

// PercentageTotal sums the percentage entries.
func (t TemplateEntries) PercentageTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t {
		if e.AmountType == AmountTypePercentage {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// InstallmentTemplate is the per-course schedule definition.
type InstallmentTemplate struct {
	ID        string          `db:"id" json:"id"`
	CourseID  string          `db:"course_id" json:"course_id"`
	Entries   TemplateEntries `db:"entries" json:"entries"`
	UpdatedBy *string         `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
