package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatRow is the projection the statistics aggregator reads.
type PaymentStatRow struct {
	TotalDue      decimal.Decimal `db:"total_due"`
	TotalPaid     decimal.Decimal `db:"total_paid"`
	PaymentStatus PaymentStatus   `db:"payment_status"`
}

// PaymentStatistics is the rollup returned by the statistics endpoint.
type PaymentStatistics struct {
	TotalPayments  int             `json:"total_payments"`
	Paid           int             `json:"paid"`
	Partial        int             `json:"partial"`
	Unpaid         int             `json:"unpaid"`
	Refunded       int             `json:"refunded"`
	Cancelled      int             `json:"cancelled"`
	TotalDue       decimal.Decimal `json:"total_due"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	AverageRevenue decimal.Decimal `json:"average_revenue"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
