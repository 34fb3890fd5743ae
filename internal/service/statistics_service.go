package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

const (
	paymentStatisticsKey     = "stats:payments"
	paymentStatisticsPattern = "stats:payments*"
)

type paymentStatsReader interface {
	ListForStatistics(ctx context.Context) ([]models.PaymentStatRow, error)
}

// AggregatePaymentStats rolls payment rows up into counts and revenue.
// Refunded payments are counted only under Refunded: they are left out of
// revenue and of the paid bucket, and also out of the partial and unpaid
// buckets even though nothing is paid on them any more. Cancelled payments
// hold no money, so they also count as unpaid but owe nothing. The average
// divides revenue by the number of payments.
func AggregatePaymentStats(rows []models.PaymentStatRow, now time.Time) models.PaymentStatistics {
	stats := models.PaymentStatistics{
		TotalPayments:  len(rows),
		TotalDue:       decimal.Zero,
		TotalRevenue:   decimal.Zero,
		Outstanding:    decimal.Zero,
		AverageRevenue: decimal.Zero,
		GeneratedAt:    now,
	}
	for _, row := range rows {
		if row.PaymentStatus == models.PaymentStatusRefunded {
			stats.Refunded++
			continue
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(row.TotalPaid)
		if row.PaymentStatus == models.PaymentStatusCancelled {
			stats.Cancelled++
		} else {
			stats.TotalDue = stats.TotalDue.Add(row.TotalDue)
			if remaining := row.TotalDue.Sub(row.TotalPaid); remaining.IsPositive() {
				stats.Outstanding = stats.Outstanding.Add(remaining)
			}
		}
		switch {
		case row.TotalPaid.IsZero():
			stats.Unpaid++
		case row.TotalPaid.GreaterThanOrEqual(row.TotalDue):
			stats.Paid++
		default:
			stats.Partial++
		}
	}
	if stats.TotalPayments > 0 {
		stats.AverageRevenue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalPayments))).Round(2)
	}
	return stats
}

// StatisticsService serves cached payment rollups.
type StatisticsService struct {
	payments paymentStatsReader
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatisticsService constructs the service. cache may be nil.
func NewStatisticsService(payments paymentStatsReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{payments: payments, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// GetPaymentStatistics returns the current rollup, from cache when fresh.
func (s *StatisticsService) GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, error) {
	if s.cache == nil {
		return s.compute(ctx)
	}
	var cached models.PaymentStatistics
	if hit, _ := s.cache.Get(ctx, paymentStatisticsKey, &cached); hit {
		return &cached, nil
	}
	value, shared, err := s.cache.Load(ctx, paymentStatisticsKey, s.ttl, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.ForContext(ctx, s.logger).Debug("payment statistics shared with concurrent request")
	}
	return value.(*models.PaymentStatistics), nil
}

// Invalidate drops cached rollups after a ledger change.
func (s *StatisticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, paymentStatisticsPattern)
}

func (s *StatisticsService) compute(ctx context.Context) (*models.PaymentStatistics, error) {
	rows, err := s.payments.ListForStatistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment statistics")
	}
	stats := AggregatePaymentStats(rows, s.now().UTC())
	return &stats, nil
}
