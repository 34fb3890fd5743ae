package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/pkg/database"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

// Approval preconditions reported by Preconditions and Approve.
const (
	PreconditionPending    = "enrollment request is not pending"
	PreconditionFeePaid    = "registration fee has not been paid"
	PreconditionAdminNotes = "admin notes are required"
	PreconditionClass      = "a class must be assigned"
	PreconditionClassFound = "class does not exist"
	PreconditionClassOpen  = "class is not available for this course"
)

const deleteRefundReason = "enrollment request deleted"

// errExpiryLost marks a stale request that was paid, decided or removed
// between listing and expiring it.
var errExpiryLost = errors.New("enrollment request no longer expirable")

type enrollmentRepository interface {
	Create(ctx context.Context, req *models.EnrollmentRequest) error
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentRequestDetail, int, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Approve(ctx context.Context, params models.ApproveEnrollmentParams) error
	Reject(ctx context.Context, params models.RejectEnrollmentParams) error
	Delete(ctx context.Context, id string) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.EnrollmentRequest, error)
}

type classRoster interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsClassAvailable(ctx context.Context, classID, courseID, level string) (bool, error)
	AddStudent(ctx context.Context, classID, studentID string) error
}

type enrolledCourseWriter interface {
	AppendEnrolledCourse(ctx context.Context, entry *models.EnrolledCourse) error
}

type paymentSettler interface {
	CreateInitialPayment(ctx context.Context, enrollmentID, studentID, courseID string) (*models.Payment, error)
	GetByEnrollment(ctx context.Context, enrollmentID string) (*models.Payment, error)
	RefundPayment(ctx context.Context, enrollmentID, reason string, actor models.Actor) (*models.RefundResult, error)
	DeletePayment(ctx context.Context, enrollmentID string, actor models.Actor) (*dto.DeletePaymentResult, error)
}

// EnrollmentServiceDeps groups the collaborators of the enrollment state machine.
type EnrollmentServiceDeps struct {
	Enrollments    enrollmentRepository
	Courses        courseReader
	Classes        classRoster
	StudentCourses enrolledCourseWriter
	Payments       paymentSettler
	FeeReconciler  initialFeeListener
	Settings       settingsProvider
	Audit          auditLogger
	Notifier       notifier
	Metrics        *MetricsService
	Validator      *validator.Validate
	Logger         *zap.Logger
}

// EnrollmentService owns the enrollment request lifecycle:
// pending -> approved | rejected, plus deletion with refund handling.
type EnrollmentService struct {
	repo           enrollmentRepository
	courses        courseReader
	classes        classRoster
	studentCourses enrolledCourseWriter
	payments       paymentSettler
	feeReconciler  initialFeeListener
	settings       settingsProvider
	audit          auditLogger
	notifier       notifier
	metrics        *MetricsService
	validator      *validator.Validate
	logger         *zap.Logger
	now            func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentServiceDeps) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:           deps.Enrollments,
		courses:        deps.Courses,
		classes:        deps.Classes,
		studentCourses: deps.StudentCourses,
		payments:       deps.Payments,
		feeReconciler:  deps.FeeReconciler,
		settings:       deps.Settings,
		audit:          deps.Audit,
		notifier:       deps.Notifier,
		metrics:        deps.Metrics,
		validator:      deps.Validator,
		logger:         deps.Logger,
		now:            time.Now,
	}
}

// CreateRequest opens a pending enrollment request together with its
// payment. If the payment cannot be created the request is removed again.
func (s *EnrollmentService) CreateRequest(ctx context.Context, req dto.CreateEnrollmentRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	studentID := strings.TrimSpace(req.StudentID)
	switch {
	case actor.Role.IsAdmin():
		if studentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
	case studentID != "" && studentID != actor.UserID:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only enroll themselves")
	default:
		studentID = actor.UserID
	}

	course, err := s.course(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}
	exists, err := s.repo.ExistsActive(ctx, studentID, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment request already exists for this course")
	}

	request := &models.EnrollmentRequest{StudentID: studentID, CourseID: course.ID, Status: models.EnrollmentStatusPending}
	if err := s.repo.Create(ctx, request); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active enrollment request already exists for this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
	}

	payment, err := s.payments.CreateInitialPayment(ctx, request.ID, studentID, course.ID)
	if err != nil {
		if delErr := s.repo.Delete(ctx, request.ID); delErr != nil {
			logger.ForContext(ctx, s.logger).Error("failed to remove enrollment request after payment error",
				zap.String("enrollment_id", request.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionEnrollmentCreate,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &request.ID,
		NewValues:  auditPayload(map[string]interface{}{"studentId": studentID, "courseId": course.ID, "paymentId": payment.ID}),
		UserAgent:  "enrollment-service",
	})
	s.metrics.RecordEnrollmentTransition("created")

	detail := &models.EnrollmentRequestDetail{EnrollmentRequest: *request, CourseName: course.Name}
	s.decorate(ctx, detail)
	return &dto.EnrollmentResponse{Enrollment: detail, Payment: payment}, nil
}

// Preconditions evaluates every approval condition and reports all that fail.
func (s *EnrollmentService) Preconditions(ctx context.Context, id, classID, adminNotes string, actor models.Actor) (*dto.ApprovalCheck, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can review enrollment requests")
	}
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	var failed []string
	if request.Status != models.EnrollmentStatusPending {
		failed = append(failed, PreconditionPending)
	}
	more, err := s.checkApproval(ctx, request, classID, adminNotes)
	if err != nil {
		return nil, err
	}
	failed = append(failed, more...)
	return &dto.ApprovalCheck{CanApprove: len(failed) == 0, Failed: failed}, nil
}

// Approve moves a pending request with a paid registration fee to approved,
// then puts the student on the class roster and the enrolled-courses record.
// Those two follow-ups are idempotent; if one fails the error is returned and
// SyncApproved can be used to finish them.
func (s *EnrollmentService) Approve(ctx context.Context, id string, req dto.ApproveEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can approve enrollment requests")
	}
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("enrollment request is already %s", request.Status))
	}
	failed, err := s.checkApproval(ctx, request, req.ClassID, req.AdminNotes)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, appErrors.Details(
			appErrors.Clone(appErrors.ErrPreconditionFailed, failed[0]),
			map[string]interface{}{"failed": failed},
		)
	}

	approvedAt := s.now().UTC()
	err = s.repo.Approve(ctx, models.ApproveEnrollmentParams{
		ID:           request.ID,
		ClassID:      strings.TrimSpace(req.ClassID),
		AdminNotes:   strings.TrimSpace(req.AdminNotes),
		AssignedBy:   actor.UserID,
		ApprovalDate: approvedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.lostTransition(ctx, request.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment request")
	}
	s.metrics.RecordEnrollmentTransition(string(models.EnrollmentStatusApproved))
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionEnrollmentApprove,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &request.ID,
		OldValues:  auditPayload(map[string]interface{}{"status": request.Status}),
		NewValues:  auditPayload(map[string]interface{}{"status": models.EnrollmentStatusApproved, "classId": req.ClassID, "adminNotes": req.AdminNotes}),
		UserAgent:  "enrollment-service",
	})

	request.Status = models.EnrollmentStatusApproved
	request.ApprovalDate = &approvedAt
	classID := strings.TrimSpace(req.ClassID)
	request.AssignedClassID = &classID
	if err := s.syncApproved(ctx, request); err != nil {
		return nil, err
	}

	detail, err := s.detail(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.Notification{
		Kind:        models.NotificationEnrollmentApproved,
		RecipientID: request.StudentID,
		Subject:     "Enrollment approved",
		Body:        fmt.Sprintf("Your enrollment in %s was approved.", detail.CourseName),
	})
	return detail, nil
}

// SyncApproved re-applies the roster and enrolled-course updates of an
// approved request. Both writes are idempotent.
func (s *EnrollmentService) SyncApproved(ctx context.Context, id string, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can approve enrollment requests")
	}
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.EnrollmentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved enrollment requests can be synchronised")
	}
	if err := s.syncApproved(ctx, request); err != nil {
		return nil, err
	}
	return s.detail(ctx, request.ID)
}

// Reject moves a pending request to rejected. No roster changes happen.
func (s *EnrollmentService) Reject(ctx context.Context, id string, req dto.RejectEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can reject enrollment requests")
	}
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.EnrollmentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("enrollment request is already %s", request.Status))
	}
	notes := strings.TrimSpace(req.AdminNotes)
	if notes == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, PreconditionAdminNotes)
	}
	if err := s.reject(ctx, request, notes, actor, models.AuditActionEnrollmentReject); err != nil {
		return nil, err
	}

	detail, err := s.detail(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, models.Notification{
		Kind:        models.NotificationEnrollmentRejected,
		RecipientID: request.StudentID,
		Subject:     "Enrollment rejected",
		Body:        fmt.Sprintf("Your enrollment in %s was rejected: %s", detail.CourseName, notes),
	})
	return detail, nil
}

// Delete removes a request that is not approved. Money already paid is
// refunded first; the request survives if the refund fails. A payment without
// money is deleted along with the request.
func (s *EnrollmentService) Delete(ctx context.Context, id string, actor models.Actor) (*dto.DeleteEnrollmentResult, error) {
	request, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && request.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment request belongs to another student")
	}
	if request.Status == models.EnrollmentStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "approved enrollment requests cannot be deleted")
	}

	result := &dto.DeleteEnrollmentResult{EnrollmentID: request.ID}
	payment, err := s.payments.GetByEnrollment(ctx, request.ID)
	if err != nil && !appErrors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}
	if payment != nil {
		switch {
		case payment.PaymentStatus == models.PaymentStatusRefunded:
			result.PaymentStatus = string(payment.PaymentStatus)
		case payment.TotalPaid.IsPositive():
			refund, err := s.payments.RefundPayment(ctx, request.ID, deleteRefundReason, actor)
			if err != nil {
				return nil, err
			}
			amount := refund.RefundAmount
			result.Refunded = refund.Refunded
			result.RefundAmount = &amount
			result.PaymentStatus = string(refund.PaymentStatus)
		default:
			if _, err := s.payments.DeletePayment(ctx, request.ID, actor); err != nil {
				return nil, err
			}
		}
	}

	if err := s.repo.Delete(ctx, request.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.lostTransition(ctx, request.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment request")
	}
	s.metrics.RecordEnrollmentTransition("deleted")
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionEnrollmentDelete,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &request.ID,
		OldValues:  auditPayload(map[string]interface{}{"status": request.Status, "studentId": request.StudentID, "courseId": request.CourseID}),
		NewValues:  auditPayload(map[string]interface{}{"refunded": result.Refunded}),
		UserAgent:  "enrollment-service",
	})
	return result, nil
}

// ExpireStale rejects pending requests whose registration fee was not paid
// within the validity window.
func (s *EnrollmentService) ExpireStale(ctx context.Context, actor models.Actor) (*dto.ExpireEnrollmentsResult, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can expire enrollment requests")
	}
	result := &dto.ExpireEnrollmentsResult{Expired: []string{}}
	settings, err := s.settings.GetCenterSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.EnrollmentValidityHours <= 0 {
		return result, nil
	}
	cutoff := s.now().UTC().Add(-time.Duration(settings.EnrollmentValidityHours) * time.Hour)
	stale, err := s.repo.ListStalePending(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stale enrollment requests")
	}
	notes := fmt.Sprintf("expired: registration fee not paid within %d hours", settings.EnrollmentValidityHours)
	for i := range stale {
		request := &stale[i]
		if err := s.reject(ctx, request, notes, actor, models.AuditActionEnrollmentExpire); err != nil {
			if errors.Is(err, errExpiryLost) {
				logger.ForContext(ctx, s.logger).Debug("stale enrollment request changed before expiry, skipped",
					zap.String("enrollment_id", request.ID))
				continue
			}
			return result, err
		}
		result.Expired = append(result.Expired, request.ID)
	}
	logger.ForContext(ctx, s.logger).Info("expired stale enrollment requests", zap.Int("count", len(result.Expired)))
	return result, nil
}

// Get returns one request with its payment.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor models.Actor) (*dto.EnrollmentResponse, error) {
	detail, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && detail.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment request belongs to another student")
	}
	payment, err := s.payments.GetByEnrollment(ctx, id)
	if err != nil && !appErrors.Is(err, appErrors.ErrNotFound) {
		return nil, err
	}
	return &dto.EnrollmentResponse{Enrollment: detail, Payment: payment}, nil
}

// List returns requests with pagination metadata; students only see their own.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, actor models.Actor) ([]models.EnrollmentRequestDetail, *models.Pagination, error) {
	if !actor.Role.IsAdmin() {
		filter.StudentID = actor.UserID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	for i := range items {
		s.decorate(ctx, &items[i])
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// checkApproval returns every failing approval condition except the status.
// The fee condition is read from the payment, not only from the request flag.
func (s *EnrollmentService) checkApproval(ctx context.Context, request *models.EnrollmentRequest, classID, adminNotes string) ([]string, error) {
	var failed []string
	paid, err := s.feeSettled(ctx, request)
	if err != nil {
		return nil, err
	}
	if !paid {
		failed = append(failed, PreconditionFeePaid)
	}
	if strings.TrimSpace(adminNotes) == "" {
		failed = append(failed, PreconditionAdminNotes)
	}
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return append(failed, PreconditionClass), nil
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return append(failed, PreconditionClassFound), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	course, err := s.course(ctx, request.CourseID)
	if err != nil {
		return nil, err
	}
	available, err := s.classes.IsClassAvailable(ctx, classID, course.ID, course.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class availability")
	}
	if !available {
		failed = append(failed, PreconditionClassOpen)
	}
	return failed, nil
}

// feeSettled reports whether the initial fee is paid on a payment that was
// neither refunded nor cancelled. A paid fee not yet flagged on the request
// is reconciled through the coordinator.
func (s *EnrollmentService) feeSettled(ctx context.Context, request *models.EnrollmentRequest) (bool, error) {
	payment, err := s.payments.GetByEnrollment(ctx, request.ID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	fee := payment.InitialFee()
	if fee == nil || fee.Status != models.InstallmentPaid || payment.PaymentStatus.Sticky() {
		return false, nil
	}
	if request.RegistrationFeePaid {
		return true, nil
	}
	if s.feeReconciler == nil {
		return false, nil
	}
	if _, err := s.feeReconciler.OnInitialFeePaid(ctx, request.ID); err != nil {
		return false, err
	}
	logger.ForContext(ctx, s.logger).Info("registration fee flag reconciled from payment", zap.String("enrollment_id", request.ID))
	request.RegistrationFeePaid = true
	return true, nil
}

func (s *EnrollmentService) syncApproved(ctx context.Context, request *models.EnrollmentRequest) error {
	if request.AssignedClassID == nil || request.ApprovalDate == nil {
		return appErrors.Clone(appErrors.ErrInternal, "approved enrollment request has no class assignment")
	}
	classID := *request.AssignedClassID
	if err := s.classes.AddStudent(ctx, classID, request.StudentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment approved but class roster update failed")
	}
	err := s.studentCourses.AppendEnrolledCourse(ctx, &models.EnrolledCourse{
		StudentID:  request.StudentID,
		CourseID:   request.CourseID,
		ClassID:    classID,
		Status:     models.EnrolledCourseApproved,
		EnrolledAt: request.RequestDate,
		ApprovedAt: *request.ApprovalDate,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment approved but student course record update failed")
	}
	return nil
}

func (s *EnrollmentService) reject(ctx context.Context, request *models.EnrollmentRequest, notes string, actor models.Actor, action string) error {
	expiring := action == models.AuditActionEnrollmentExpire
	err := s.repo.Reject(ctx, models.RejectEnrollmentParams{
		ID:               request.ID,
		AdminNotes:       notes,
		AssignedBy:       actor.UserID,
		RejectedAt:       s.now().UTC(),
		RequireFeeUnpaid: expiring,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if expiring {
				return errExpiryLost
			}
			return s.lostTransition(ctx, request.ID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment request")
	}
	s.metrics.RecordEnrollmentTransition(string(models.EnrollmentStatusRejected))
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     action,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &request.ID,
		OldValues:  auditPayload(map[string]interface{}{"status": request.Status}),
		NewValues:  auditPayload(map[string]interface{}{"status": models.EnrollmentStatusRejected, "adminNotes": notes}),
		UserAgent:  "enrollment-service",
	})
	request.Status = models.EnrollmentStatusRejected
	request.AdminNotes = &notes
	return nil
}

// lostTransition explains why a guarded write matched no row.
func (s *EnrollmentService) lostTransition(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	switch {
	case current.Status == models.EnrollmentStatusApproved:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment request is already approved")
	case current.Status != models.EnrollmentStatusPending:
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("enrollment request is already %s", current.Status))
	case !current.RegistrationFeePaid:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, PreconditionFeePaid)
	}
	return appErrors.Clone(appErrors.ErrConflict, "enrollment request changed concurrently, reload and retry")
}

func (s *EnrollmentService) find(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	return request, nil
}

func (s *EnrollmentService) detail(ctx context.Context, id string) (*models.EnrollmentRequestDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	s.decorate(ctx, detail)
	return detail, nil
}

func (s *EnrollmentService) decorate(ctx context.Context, detail *models.EnrollmentRequestDetail) {
	if s.settings == nil || detail == nil {
		return
	}
	settings, err := s.settings.GetCenterSettings(ctx)
	if err != nil {
		return
	}
	detail.ExpiresAt = detail.EnrollmentRequest.ExpiresAt(settings.EnrollmentValidityHours)
}

func (s *EnrollmentService) course(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *EnrollmentService) notify(ctx context.Context, n models.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}
