package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeDecimal ConfigurationType = "DECIMAL"
	ConfigurationTypeInteger ConfigurationType = "INTEGER"
)

// Keys of the center settings stored in the configurations table.
const (
	ConfigKeyRegistrationFee         = "center.registration_fee"
	ConfigKeyEnrollmentValidityHours = "center.enrollment_validity_hours"
)

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// CenterSettings is the singleton with training-center wide billing values.
type CenterSettings struct {
	RegistrationFee         decimal.Decimal `json:"registration_fee"`
	EnrollmentValidityHours int             `json:"enrollment_validity_hours"`
}
