package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type templateStore interface {
	FindByCourse(ctx context.Context, courseID string) (*models.InstallmentTemplate, error)
	Upsert(ctx context.Context, tpl *models.InstallmentTemplate) error
	DeleteByCourse(ctx context.Context, courseID string) error
}

// InstallmentTemplateService lets admins author per-course schedules. Edits
// only affect payments created afterwards.
type InstallmentTemplateService struct {
	courses   courseReader
	templates templateStore
	settings  settingsProvider
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstallmentTemplateService constructs the service.
func NewInstallmentTemplateService(courses courseReader, templates templateStore, settings settingsProvider, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *InstallmentTemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstallmentTemplateService{courses: courses, templates: templates, settings: settings, audit: audit, validator: validate, logger: logger}
}

// Get returns the stored template of a course, or the default schedule
// entries (with an empty ID) when none was authored.
func (s *InstallmentTemplateService) Get(ctx context.Context, courseID string) (*models.InstallmentTemplate, error) {
	if _, err := s.course(ctx, courseID); err != nil {
		return nil, err
	}
	tpl, err := s.templates.FindByCourse(ctx, courseID)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load installment template")
	}
	settings, err := s.settings.GetCenterSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &models.InstallmentTemplate{CourseID: courseID, Entries: DefaultTemplateEntries(settings.RegistrationFee)}, nil
}

// Upsert replaces the template of a course.
func (s *InstallmentTemplateService) Upsert(ctx context.Context, courseID string, req dto.UpsertTemplateRequest, actor models.Actor) (*models.InstallmentTemplate, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can edit installment templates")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid installment template payload")
	}
	entries := make(models.TemplateEntries, len(req.Entries))
	for i, entry := range req.Entries {
		entry.Name = strings.TrimSpace(entry.Name)
		entries[i] = entry
	}
	if err := ValidateTemplateEntries(entries); err != nil {
		return nil, err
	}
	if _, err := s.course(ctx, courseID); err != nil {
		return nil, err
	}

	tpl := &models.InstallmentTemplate{CourseID: courseID, Entries: entries, UpdatedBy: &actor.UserID}
	if err := s.templates.Upsert(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save installment template")
	}
	newValues, _ := json.Marshal(tpl.Entries)
	s.emitAudit(ctx, actor, models.AuditActionTemplateUpsert, courseID, newValues)
	return tpl, nil
}

// Delete removes the template of a course so the default schedule applies again.
func (s *InstallmentTemplateService) Delete(ctx context.Context, courseID string, actor models.Actor) error {
	if !actor.Role.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can edit installment templates")
	}
	if err := s.templates.DeleteByCourse(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "installment template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete installment template")
	}
	s.emitAudit(ctx, actor, models.AuditActionTemplateDelete, courseID, nil)
	return nil
}

func (s *InstallmentTemplateService) course(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *InstallmentTemplateService) emitAudit(ctx context.Context, actor models.Actor, action, courseID string, newValues []byte) {
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     action,
		Resource:   models.AuditTargetTemplate,
		ResourceID: &courseID,
		NewValues:  newValues,
		UserAgent:  "installment-template-service",
	})
}
