package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/pkg/database"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

// Payment actions checked against the enrollment request.
const (
	PaymentActionUpdateInstallment = "update_installment"
	PaymentActionDelete            = "delete_payment"
)

type paymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListWithUnpaidInstallments(ctx context.Context) ([]models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
}

type templateReader interface {
	FindByCourse(ctx context.Context, courseID string) (*models.InstallmentTemplate, error)
}

type paymentGuard interface {
	ValidatePaymentAction(ctx context.Context, enrollmentID, action string) (*dto.PaymentActionCheck, error)
}

type initialFeeListener interface {
	OnInitialFeePaid(ctx context.Context, enrollmentID string) (bool, error)
}

type refundListener interface {
	OnPaymentRefunded(ctx context.Context, enrollmentID string) (bool, error)
}

type statisticsInvalidator interface {
	Invalidate(ctx context.Context)
}

type notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// PaymentServiceDeps groups the collaborators of the payment ledger. Guard,
// FeeListener and RefundListener are usually the same Coordinator.
type PaymentServiceDeps struct {
	Payments       paymentStore
	Courses        courseReader
	Templates      templateReader
	Settings       settingsProvider
	Guard          paymentGuard
	FeeListener    initialFeeListener
	RefundListener refundListener
	Audit          auditLogger
	Statistics     statisticsInvalidator
	Notifier       notifier
	Metrics        *MetricsService
	Logger         *zap.Logger
}

// PaymentService is the payment ledger: one payment per (student, course)
// with an installment schedule frozen at creation.
type PaymentService struct {
	payments    paymentStore
	courses     courseReader
	templates   templateReader
	settings    settingsProvider
	guard       paymentGuard
	feeListener initialFeeListener
	refunds     refundListener
	audit       auditLogger
	statistics  statisticsInvalidator
	notifier    notifier
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService constructs the ledger.
func NewPaymentService(deps PaymentServiceDeps) *PaymentService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PaymentService{
		payments:    deps.Payments,
		courses:     deps.Courses,
		templates:   deps.Templates,
		settings:    deps.Settings,
		guard:       deps.Guard,
		feeListener: deps.FeeListener,
		refunds:     deps.RefundListener,
		audit:       deps.Audit,
		statistics:  deps.Statistics,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// CreateInitialPayment opens the ledger record of an enrollment request. The
// schedule is resolved once here and never re-resolved.
func (s *PaymentService) CreateInitialPayment(ctx context.Context, enrollmentID, studentID, courseID string) (*models.Payment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	var tpl *models.InstallmentTemplate
	if s.templates != nil {
		tpl, err = s.templates.FindByCourse(ctx, courseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment template")
		}
	}
	settings, err := s.settings.GetCenterSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	installments, err := ResolveSchedule(course, tpl, settings.RegistrationFee, now)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		StudentID:       studentID,
		CourseID:        courseID,
		RegistrationFee: settings.RegistrationFee,
		TotalDue:        course.Price.Add(settings.RegistrationFee),
		TotalPaid:       decimal.Zero,
		PaymentStatus:   models.PaymentStatusPending,
		Installments:    installments,
	}
	if enrollmentID != "" {
		payment.EnrollmentID = &enrollmentID
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a payment already exists for this student and course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	emitAudit(ctx, s.audit, s.logger, models.SystemActor, &models.AuditLog{
		Action:     models.AuditActionPaymentCreate,
		Resource:   models.AuditTargetPayment,
		ResourceID: &payment.ID,
		NewValues: auditPayload(map[string]interface{}{
			"enrollmentId": enrollmentID,
			"totalDue":     payment.TotalDue.String(),
			"installments": len(payment.Installments),
		}),
		UserAgent: "payment-service",
	})
	s.invalidateStatistics(ctx)
	return payment, nil
}

// PayInstallment marks an installment as paid now.
func (s *PaymentService) PayInstallment(ctx context.Context, paymentID, installmentName string, actor models.Actor) (*models.Payment, error) {
	return s.UpdateInstallment(ctx, paymentID, installmentName, dto.UpdateInstallmentRequest{Status: models.InstallmentPaid}, actor)
}

// UpdateInstallment applies a guarded status change to one installment. A
// stored paid installment can never be paid again nor reverted; the only way
// back is a refund. The write is rejected with Conflict if another request
// changed the payment in between.
func (s *PaymentService) UpdateInstallment(ctx context.Context, paymentID, installmentName string, req dto.UpdateInstallmentRequest, actor models.Actor) (*models.Payment, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can record payments")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown installment status")
	}
	payment, err := s.findByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkGuard(ctx, payment, PaymentActionUpdateInstallment); err != nil {
		return nil, err
	}
	if payment.PaymentStatus.Sticky() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("payment is %s; installments can no longer change", payment.PaymentStatus))
	}

	idx := payment.Installment(installmentName)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("installment %q not found", installmentName))
	}
	inst := &payment.Installments[idx]
	oldStatus := inst.Status
	if err := checkInstallmentTransition(oldStatus, req.Status); err != nil {
		return nil, err
	}

	paidAt := s.now().UTC()
	if req.PaymentDate != nil {
		paidAt = req.PaymentDate.UTC()
	}
	inst.Status = models.InstallmentPaid
	inst.PaymentDate = &paidAt
	payment.RecalculateTotals()

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, s.translateWriteError(err)
	}
	paid := *inst

	log := logger.ForContext(ctx, s.logger)
	log.Info("installment paid",
		zap.String("payment_id", payment.ID),
		zap.String("installment", paid.Name),
		zap.String("amount", paid.Amount.String()),
		zap.String("payment_status", string(payment.PaymentStatus)),
	)
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionInstallmentUpdate,
		Resource:   models.AuditTargetPayment,
		ResourceID: &payment.ID,
		OldValues:  auditPayload(map[string]interface{}{"status": oldStatus}),
		NewValues: auditPayload(map[string]interface{}{
			"paymentId":       payment.ID,
			"installmentName": paid.Name,
			"oldStatus":       oldStatus,
			"newStatus":       paid.Status,
			"amount":          paid.Amount.String(),
		}),
		UserAgent: "payment-service",
	})
	s.metrics.RecordInstallmentPaid(paid.Amount)
	s.invalidateStatistics(ctx)
	s.notify(ctx, models.Notification{
		Kind:        models.NotificationInstallmentPaid,
		RecipientID: payment.StudentID,
		Subject:     "Payment received",
		Body:        fmt.Sprintf("We received %s for %q. Outstanding balance: %s.", paid.Amount.StringFixed(2), paid.Name, payment.Outstanding().StringFixed(2)),
	})

	if paid.IsInitialFee && payment.EnrollmentID != nil && s.feeListener != nil {
		if _, err := s.feeListener.OnInitialFeePaid(ctx, *payment.EnrollmentID); err != nil {
			log.Error("registration fee recorded on payment but not on enrollment",
				zap.String("enrollment_id", *payment.EnrollmentID),
				zap.Error(err),
			)
			return nil, err
		}
	}
	return payment, nil
}

func checkInstallmentTransition(from, to models.InstallmentStatus) error {
	switch {
	case from == models.InstallmentRefunded:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "installment already refunded")
	case from == models.InstallmentPaid && to == models.InstallmentPaid:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "installment already paid")
	case from == models.InstallmentPaid:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "installment already paid, cannot be modified")
	case to == models.InstallmentUnpaid:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "installment is already unpaid")
	case to == models.InstallmentRefunded:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only paid installments can be refunded, use the refund operation")
	}
	return nil
}

// RefundPayment refunds everything paid on the payment of an enrollment. A
// payment without money is cancelled instead. TotalPaid keeps the amount that
// was paid so it can be reported as returned to the student.
func (s *PaymentService) RefundPayment(ctx context.Context, enrollmentID, reason string, actor models.Actor) (*models.RefundResult, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can refund payments")
	}
	payment, err := s.GetByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	switch payment.PaymentStatus {
	case models.PaymentStatusRefunded:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "payment already refunded")
	case models.PaymentStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "payment already cancelled")
	}

	oldStatus := payment.PaymentStatus
	result := &models.RefundResult{PaymentID: payment.ID, RefundAmount: decimal.Zero}
	if payment.TotalPaid.IsZero() {
		payment.PaymentStatus = models.PaymentStatusCancelled
	} else {
		now := s.now().UTC()
		for i := range payment.Installments {
			if payment.Installments[i].Status == models.InstallmentPaid {
				payment.Installments[i].Status = models.InstallmentRefunded
				payment.Installments[i].RefundDate = &now
			}
		}
		by := actor.UserID
		payment.PaymentStatus = models.PaymentStatusRefunded
		payment.RefundReason = &reason
		payment.RefundDate = &now
		payment.RefundedBy = &by
		result.RefundAmount = payment.TotalPaid
		result.Refunded = true
	}
	result.PaymentStatus = payment.PaymentStatus

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, s.translateWriteError(err)
	}

	logger.ForContext(ctx, s.logger).Info("payment refunded",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", enrollmentID),
		zap.String("status", string(payment.PaymentStatus)),
		zap.String("amount", result.RefundAmount.String()),
	)
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionPaymentRefund,
		Resource:   models.AuditTargetPayment,
		ResourceID: &payment.ID,
		OldValues:  auditPayload(map[string]interface{}{"paymentStatus": oldStatus}),
		NewValues: auditPayload(map[string]interface{}{
			"paymentStatus": payment.PaymentStatus,
			"refundAmount":  result.RefundAmount.String(),
			"reason":        reason,
		}),
		UserAgent: "payment-service",
	})
	if s.refunds != nil {
		// approval re-checks the payment, so a stale flag cannot approve
		if _, err := s.refunds.OnPaymentRefunded(ctx, enrollmentID); err != nil {
			logger.ForContext(ctx, s.logger).Warn("failed to withdraw registration fee flag",
				zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
	}
	s.metrics.RecordRefund(string(payment.PaymentStatus), result.RefundAmount)
	s.invalidateStatistics(ctx)
	if result.Refunded {
		s.notify(ctx, models.Notification{
			Kind:        models.NotificationPaymentRefunded,
			RecipientID: payment.StudentID,
			Subject:     "Payment refunded",
			Body:        fmt.Sprintf("%s has been refunded. Reason: %s", result.RefundAmount.StringFixed(2), reason),
		})
	}
	return result, nil
}

// DeletePayment removes the payment of an enrollment request when no money
// was recorded and the request is not approved.
func (s *PaymentService) DeletePayment(ctx context.Context, enrollmentID string, actor models.Actor) (*dto.DeletePaymentResult, error) {
	payment, err := s.GetByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if payment.TotalPaid.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot delete payment with financial transactions")
	}
	if s.guard != nil {
		check, err := s.guard.ValidatePaymentAction(ctx, enrollmentID, PaymentActionDelete)
		if err != nil {
			return nil, err
		}
		if check.EnrollmentStatus == models.EnrollmentStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot delete payment of approved enrollment")
		}
	}
	if err := s.payments.Delete(ctx, payment.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment changed while deleting, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionPaymentDelete,
		Resource:   models.AuditTargetPayment,
		ResourceID: &payment.ID,
		OldValues:  auditPayload(map[string]interface{}{"enrollmentId": enrollmentID, "totalDue": payment.TotalDue.String()}),
		UserAgent:  "payment-service",
	})
	s.invalidateStatistics(ctx)
	return &dto.DeletePaymentResult{PaymentID: payment.ID, Deleted: true}, nil
}

// Get returns a payment visible to actor.
func (s *PaymentService) Get(ctx context.Context, id string, actor models.Actor) (*models.Payment, error) {
	payment, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && payment.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	return payment, nil
}

// GetByEnrollment returns the payment linked to an enrollment request.
func (s *PaymentService) GetByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error) {
	payment, err := s.payments.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns payments; students only see their own.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter, actor models.Actor) ([]models.Payment, *models.Pagination, error) {
	if !actor.Role.IsAdmin() {
		filter.StudentID = actor.UserID
	}
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Overdue lists unpaid installments whose due date is before now. Overdue is
// derived at read time and never stored.
func (s *PaymentService) Overdue(ctx context.Context, now time.Time) ([]models.OverdueInstallment, error) {
	payments, err := s.payments.ListWithUnpaidInstallments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	items := make([]models.OverdueInstallment, 0)
	for _, payment := range payments {
		for _, inst := range payment.Installments {
			if !inst.Overdue(now) {
				continue
			}
			items = append(items, models.OverdueInstallment{
				PaymentID:    payment.ID,
				EnrollmentID: payment.EnrollmentID,
				StudentID:    payment.StudentID,
				CourseID:     payment.CourseID,
				Name:         inst.Name,
				Amount:       inst.Amount,
				DueDate:      inst.DueDate,
				DaysOverdue:  int(now.Sub(inst.DueDate).Hours() / 24),
			})
		}
	}
	return items, nil
}

func (s *PaymentService) findByID(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

func (s *PaymentService) checkGuard(ctx context.Context, payment *models.Payment, action string) error {
	if s.guard == nil || payment.EnrollmentID == nil {
		return nil
	}
	check, err := s.guard.ValidatePaymentAction(ctx, *payment.EnrollmentID, action)
	if err != nil {
		return err
	}
	if !check.Allowed {
		return appErrors.Clone(appErrors.ErrForbidden, check.Message)
	}
	return nil
}

func (s *PaymentService) translateWriteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "payment was modified concurrently, reload and retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
}

func (s *PaymentService) invalidateStatistics(ctx context.Context) {
	if s.statistics != nil {
		s.statistics.Invalidate(ctx)
	}
}

func (s *PaymentService) notify(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
