package dto

import "github.com/noah-isme/course-billing-api/internal/models"

// UpsertTemplateRequest replaces the installment template of a course.
type UpsertTemplateRequest struct {
	Entries []models.TemplateEntry `json:"entries" validate:"required,min=1,dive"`
}

// UpdateCenterSettingsRequest edits the center-wide billing settings.
type UpdateCenterSettingsRequest struct {
	RegistrationFee         *string `json:"registration_fee,omitempty"`
	EnrollmentValidityHours *int    `json:"enrollment_validity_hours,omitempty" validate:"omitempty,gte=0"`
}
