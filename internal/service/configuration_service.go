package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type settingsProvider interface {
	GetCenterSettings(ctx context.Context) (*models.CenterSettings, error)
}

var centerSettingKeys = []string{models.ConfigKeyRegistrationFee, models.ConfigKeyEnrollmentValidityHours}

// ConfigurationService exposes the center settings stored in the
// configurations table, falling back to the values from the environment.
type ConfigurationService struct {
	repo      configurationRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	defaults  models.CenterSettings
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(repo configurationRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, defaults models.CenterSettings) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigurationService{repo: repo, audit: audit, validator: validate, logger: logger, defaults: defaults}
}

// GetCenterSettings returns the effective center settings. Stored values that
// fail to parse are ignored in favour of the defaults.
func (s *ConfigurationService) GetCenterSettings(ctx context.Context) (*models.CenterSettings, error) {
	settings := s.defaults
	if s.repo == nil {
		return &settings, nil
	}
	items, err := s.repo.ListByKeys(ctx, centerSettingKeys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load center settings")
	}
	for _, item := range items {
		switch item.Key {
		case models.ConfigKeyRegistrationFee:
			fee, err := decimal.NewFromString(strings.TrimSpace(item.Value))
			if err != nil || fee.IsNegative() {
				s.logger.Warn("ignoring invalid registration fee setting", zap.String("value", item.Value))
				continue
			}
			settings.RegistrationFee = fee
		case models.ConfigKeyEnrollmentValidityHours:
			hours, err := strconv.Atoi(strings.TrimSpace(item.Value))
			if err != nil || hours < 0 {
				s.logger.Warn("ignoring invalid enrollment validity setting", zap.String("value", item.Value))
				continue
			}
			settings.EnrollmentValidityHours = hours
		}
	}
	return &settings, nil
}

// UpdateCenterSettings stores the provided values; omitted fields keep their
// current value.
func (s *ConfigurationService) UpdateCenterSettings(ctx context.Context, req dto.UpdateCenterSettingsRequest, actor models.Actor) (*models.CenterSettings, error) {
	if !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change center settings")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}
	current, err := s.GetCenterSettings(ctx)
	if err != nil {
		return nil, err
	}

	var updates []models.Configuration
	oldValues := map[string]interface{}{}
	newValues := map[string]interface{}{}
	if req.RegistrationFee != nil {
		fee, err := decimal.NewFromString(strings.TrimSpace(*req.RegistrationFee))
		if err != nil || fee.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "registration fee must be a non-negative amount")
		}
		oldValues["registration_fee"] = current.RegistrationFee.String()
		newValues["registration_fee"] = fee.String()
		current.RegistrationFee = fee
		updates = append(updates, s.entry(models.ConfigKeyRegistrationFee, fee.String(), models.ConfigurationTypeDecimal, "Registration fee charged with every enrollment", actor))
	}
	if req.EnrollmentValidityHours != nil {
		oldValues["enrollment_validity_hours"] = current.EnrollmentValidityHours
		newValues["enrollment_validity_hours"] = *req.EnrollmentValidityHours
		current.EnrollmentValidityHours = *req.EnrollmentValidityHours
		updates = append(updates, s.entry(models.ConfigKeyEnrollmentValidityHours, strconv.Itoa(*req.EnrollmentValidityHours), models.ConfigurationTypeInteger, "Hours a pending request stays valid without a paid fee", actor))
	}
	if len(updates) == 0 {
		return current, nil
	}
	if err := s.repo.BulkUpsert(ctx, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update center settings")
	}

	resource := "center"
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionCenterSettingsEdit,
		Resource:   models.AuditTargetSettings,
		ResourceID: &resource,
		OldValues:  auditPayload(oldValues),
		NewValues:  auditPayload(newValues),
		UserAgent:  "configuration-service",
	})
	return current, nil
}

func (s *ConfigurationService) entry(key, value string, typ models.ConfigurationType, description string, actor models.Actor) models.Configuration {
	desc := description
	by := actor.UserID
	return models.Configuration{
		Key:         key,
		Value:       value,
		Type:        typ,
		Description: &desc,
		UpdatedBy:   &by,
	}
}
