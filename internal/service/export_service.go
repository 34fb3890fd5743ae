package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/export"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type documentRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

type statementSource interface {
	Get(ctx context.Context, id string, actor models.Actor) (*models.Payment, error)
}

type statisticsSource interface {
	GetPaymentStatistics(ctx context.Context) (*models.PaymentStatistics, error)
}

// Document is a rendered export ready to be streamed.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders payment statements and statistics as CSV or PDF.
type ExportService struct {
	payments   statementSource
	statistics statisticsSource
	renderers  map[string]documentRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(payments statementSource, statistics statisticsSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		payments:   payments,
		statistics: statistics,
		renderers: map[string]documentRenderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// PaymentStatement renders the installment schedule of one payment.
func (s *ExportService) PaymentStatement(ctx context.Context, paymentID, format string, actor models.Actor) (*Document, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.Get(ctx, paymentID, actor)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	data := PaymentStatementDataset(payment, now)
	return s.render(ctx, renderer, data, "Payment statement", fmt.Sprintf("statement-%s", payment.ID))
}

// PaymentStatistics renders the current payment rollup. Admin only.
func (s *ExportService) PaymentStatistics(ctx context.Context, format string, actor models.Actor) (*Document, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export statistics")
	}
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	stats, err := s.statistics.GetPaymentStatistics(ctx)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("payment-statistics-%s", stats.GeneratedAt.UTC().Format("20060102"))
	return s.render(ctx, renderer, StatisticsDataset(stats), "Payment statistics", name)
}

// PaymentStatementDataset lays out a payment as one row per installment.
func PaymentStatementDataset(p *models.Payment, now time.Time) export.Dataset {
	headers := []string{"Installment", "Amount", "Due date", "Status", "Paid on", "Overdue"}
	rows := make([]map[string]string, 0, len(p.Installments))
	for _, inst := range p.Installments {
		paidOn := ""
		if inst.PaymentDate != nil {
			paidOn = inst.PaymentDate.Format("2006-01-02")
		}
		overdue := "no"
		if inst.Overdue(now) {
			overdue = "yes"
		}
		rows = append(rows, map[string]string{
			"Installment": inst.Name,
			"Amount":      inst.Amount.StringFixed(2),
			"Due date":    inst.DueDate.Format("2006-01-02"),
			"Status":      string(inst.Status),
			"Paid on":     paidOn,
			"Overdue":     overdue,
		})
	}
	summary := [][2]string{
		{"Total due", p.TotalDue.StringFixed(2)},
		{"Total paid", p.TotalPaid.StringFixed(2)},
		{"Outstanding", p.Outstanding().StringFixed(2)},
		{"Status", string(p.PaymentStatus)},
	}
	if p.RefundReason != nil {
		summary = append(summary, [2]string{"Refund reason", *p.RefundReason})
	}
	return export.Dataset{Headers: headers, Rows: rows, Summary: summary}
}

// StatisticsDataset lays out the rollup as metric/value rows.
func StatisticsDataset(stats *models.PaymentStatistics) export.Dataset {
	pairs := [][2]string{
		{"Total payments", fmt.Sprint(stats.TotalPayments)},
		{"Paid", fmt.Sprint(stats.Paid)},
		{"Partial", fmt.Sprint(stats.Partial)},
		{"Unpaid", fmt.Sprint(stats.Unpaid)},
		{"Refunded", fmt.Sprint(stats.Refunded)},
		{"Cancelled", fmt.Sprint(stats.Cancelled)},
		{"Total due", stats.TotalDue.StringFixed(2)},
		{"Total revenue", stats.TotalRevenue.StringFixed(2)},
		{"Outstanding", stats.Outstanding.StringFixed(2)},
		{"Average revenue", stats.AverageRevenue.StringFixed(2)},
	}
	rows := make([]map[string]string, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, map[string]string{"Metric": pair[0], "Value": pair[1]})
	}
	return export.Dataset{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
		Summary: [][2]string{{"Generated at", stats.GeneratedAt.UTC().Format(time.RFC3339)}},
	}
}

func (s *ExportService) renderer(format string) (documentRenderer, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	return renderer, nil
}

func (s *ExportService) render(ctx context.Context, renderer documentRenderer, data export.Dataset, title, name string) (*Document, error) {
	payload, err := renderer.Render(data, title)
	if err != nil {
		logger.ForContext(ctx, s.logger).Error("failed to render export", zap.String("document", name), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &Document{
		Filename:    fmt.Sprintf("%s.%s", name, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}
