package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

type enrollmentFlagStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	MarkRegistrationFeePaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
	ClearRegistrationFeePaid(ctx context.Context, id string, at time.Time) (bool, error)
}

// Coordinator keeps payments and enrollment requests consistent. It is the
// only component that lets payment state flow into an enrollment request.
type Coordinator struct {
	enrollments enrollmentFlagStore
	audit       auditLogger
	logger      *zap.Logger
	now         func() time.Time
}

// NewCoordinator constructs the coordinator.
func NewCoordinator(enrollments enrollmentFlagStore, audit auditLogger, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{enrollments: enrollments, audit: audit, logger: logger, now: time.Now}
}

// ValidatePaymentAction tells whether a payment mutation may proceed given
// the state of its enrollment request. Rejected and deleted requests freeze
// their payment.
func (c *Coordinator) ValidatePaymentAction(ctx context.Context, enrollmentID, action string) (*dto.PaymentActionCheck, error) {
	req, err := c.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.PaymentActionCheck{
				Allowed:          false,
				Message:          "enrollment request has been deleted; payment changes are not allowed",
				EnrollmentStatus: models.EnrollmentStatusDeleted,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
	}
	if req.Status == models.EnrollmentStatusRejected {
		return &dto.PaymentActionCheck{
			Allowed:          false,
			Message:          "enrollment request was rejected; payment changes are not allowed",
			EnrollmentStatus: req.Status,
		}, nil
	}
	logger.ForContext(ctx, c.logger).Debug("payment action allowed",
		zap.String("enrollment_id", enrollmentID),
		zap.String("action", action),
		zap.String("enrollment_status", string(req.Status)),
	)
	return &dto.PaymentActionCheck{Allowed: true, Message: "allowed", EnrollmentStatus: req.Status}, nil
}

// OnInitialFeePaid records that the registration fee of an enrollment request
// was paid. It reports whether the flag changed; repeated calls are no-ops.
func (c *Coordinator) OnInitialFeePaid(ctx context.Context, enrollmentID string) (bool, error) {
	changed, err := c.enrollments.MarkRegistrationFeePaid(ctx, enrollmentID, c.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record registration fee payment")
	}
	if !changed {
		if _, err := c.enrollments.FindByID(ctx, enrollmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
			}
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment request")
		}
		return false, nil
	}
	emitAudit(ctx, c.audit, c.logger, models.SystemActor, &models.AuditLog{
		Action:     models.AuditActionRegistrationFee,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &enrollmentID,
		NewValues:  auditPayload(map[string]interface{}{"registrationFeePaid": true}),
		UserAgent:  "coordinator",
	})
	return true, nil
}

// OnPaymentRefunded withdraws the fee flag of a still pending request after
// its payment was refunded or cancelled, so it can no longer be approved.
// Requests that already left pending are not touched.
func (c *Coordinator) OnPaymentRefunded(ctx context.Context, enrollmentID string) (bool, error) {
	changed, err := c.enrollments.ClearRegistrationFeePaid(ctx, enrollmentID, c.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw registration fee flag")
	}
	if !changed {
		return false, nil
	}
	emitAudit(ctx, c.audit, c.logger, models.SystemActor, &models.AuditLog{
		Action:     models.AuditActionRegistrationUnpaid,
		Resource:   models.AuditTargetEnrollment,
		ResourceID: &enrollmentID,
		OldValues:  auditPayload(map[string]interface{}{"registrationFeePaid": true}),
		NewValues:  auditPayload(map[string]interface{}{"registrationFeePaid": false}),
		UserAgent:  "coordinator",
	})
	return true, nil
}
