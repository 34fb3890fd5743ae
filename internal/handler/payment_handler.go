package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/internal/service"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/response"
)

type paymentService interface {
	PayInstallment(ctx context.Context, paymentID, installmentName string, actor models.Actor) (*models.Payment, error)
	UpdateInstallment(ctx context.Context, paymentID, installmentName string, req dto.UpdateInstallmentRequest, actor models.Actor) (*models.Payment, error)
	RefundPayment(ctx context.Context, enrollmentID, reason string, actor models.Actor) (*models.RefundResult, error)
	DeletePayment(ctx context.Context, enrollmentID string, actor models.Actor) (*dto.DeletePaymentResult, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter, actor models.Actor) ([]models.Payment, *models.Pagination, error)
	Overdue(ctx context.Context, now time.Time) ([]models.OverdueInstallment, error)
}

type statementExporter interface {
	PaymentStatement(ctx context.Context, paymentID, format string, actor models.Actor) (*service.Document, error)
}

// PaymentHandler exposes the payment ledger.
type PaymentHandler struct {
	payments paymentService
	exports  statementExporter
	now      func() time.Time
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(payments paymentService, exports statementExporter) *PaymentHandler {
	return &PaymentHandler{payments: payments, exports: exports, now: time.Now}
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param studentId query string false "Student ID"
// @Param courseId query string false "Course ID"
// @Param status query string false "pending|completed|cancelled|refunded"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.PaymentFilter{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		Status:    models.PaymentStatus(strings.ToLower(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.payments.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Overdue godoc
// @Summary List unpaid installments past their due date
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/overdue [get]
func (h *PaymentHandler) Overdue(c *gin.Context) {
	items, err := h.payments.Overdue(c.Request.Context(), h.now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UpdateInstallment godoc
// @Summary Change the status of one installment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param name path string true "Installment name"
// @Param payload body dto.UpdateInstallmentRequest true "Installment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/installments/{name} [patch]
func (h *PaymentHandler) UpdateInstallment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.UpdateInstallment(c.Request.Context(), c.Param("id"), c.Param("name"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// PayInstallment godoc
// @Summary Mark one installment as paid
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Param name path string true "Installment name"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/installments/{name}/pay [post]
func (h *PaymentHandler) PayInstallment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payment, err := h.payments.PayInstallment(c.Request.Context(), c.Param("id"), c.Param("name"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Refund godoc
// @Summary Refund the payment of an enrollment request
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.RefundPaymentRequest true "Refund payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.payments.RefundPayment(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete the unpaid payment of an enrollment request
// @Tags Payments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/payment [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.payments.DeletePayment(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Statement godoc
// @Summary Download a payment statement
// @Tags Payments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Param format query string false "csv|pdf"
// @Success 200 {file} file
// @Router /payments/{id}/statement [get]
func (h *PaymentHandler) Statement(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	doc, err := h.exports.PaymentStatement(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Data)
}
