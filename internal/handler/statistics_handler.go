package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-billing-api/internal/middleware"
	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/internal/service"
	"github.com/noah-isme/course-billing-api/pkg/response"
)

type statisticsService interface {
	GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, error)
}

type statisticsExporter interface {
	PaymentStatistics(ctx context.Context, format string, actor models.Actor) (*service.Document, error)
}

// StatisticsHandler serves payment rollups.
type StatisticsHandler struct {
	statistics statisticsService
	exports    statisticsExporter
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(statistics statisticsService, exports statisticsExporter) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics, exports: exports}
}

// Payments godoc
// @Summary Payment statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics/payments [get]
func (h *StatisticsHandler) Payments(c *gin.Context) {
	stats, err := h.statistics.GetPaymentStatistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "generated_at", stats.GeneratedAt)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download payment statistics
// @Tags Statistics
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv|pdf"
// @Success 200 {file} file
// @Router /statistics/payments/export [get]
func (h *StatisticsHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	doc, err := h.exports.PaymentStatistics(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data)
}
