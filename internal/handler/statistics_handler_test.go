package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/middleware"
	"github.com/noah-isme/course-billing-api/internal/models"
)

type statisticsServiceMock struct {
	stats *models.PaymentStatistics
}

func (m *statisticsServiceMock) GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, error) {
	return m.stats, nil
}

func TestStatisticsHandlerPaymentsSetsMeta(t *testing.T) {
	generated := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	handler := NewStatisticsHandler(&statisticsServiceMock{stats: &models.PaymentStatistics{TotalPayments: 3, GeneratedAt: generated}}, &exporterMock{})
	c, w := newTestContext(http.MethodGet, "/statistics/payments", nil, adminClaims())
	middleware.WithResponseMeta()(c)

	handler.Payments(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "2026-03-02T09:00:00Z", env.Meta["generated_at"])
}

func TestStatisticsHandlerExportPDF(t *testing.T) {
	exports := &exporterMock{}
	handler := NewStatisticsHandler(&statisticsServiceMock{}, exports)
	c, w := newTestContext(http.MethodGet, "/statistics/payments/export?format=pdf", nil, adminClaims())

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf", exports.format)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}
