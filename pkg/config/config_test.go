package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BILLING_REGISTRATION_FEE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Billing.RegistrationFee.Equal(decimal.NewFromInt(20000)))
	assert.Equal(t, 72, cfg.Billing.EnrollmentValidityHours)
	assert.Equal(t, 5*time.Minute, cfg.Statistics.CacheTTL)
	assert.Equal(t, uint32(5), cfg.Notifications.BreakerThreshold)
}

func TestLoadBillingOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BILLING_REGISTRATION_FEE", "15000.50")
	t.Setenv("BILLING_ENROLLMENT_VALIDITY_HOURS", "48")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "15000.5", cfg.Billing.RegistrationFee.String())
	assert.Equal(t, 48, cfg.Billing.EnrollmentValidityHours)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDecimalRejectsNegative(t *testing.T) {
	fallback := decimal.NewFromInt(1)
	assert.True(t, parseDecimal("-5", fallback).Equal(fallback))
	assert.True(t, parseDecimal("abc", fallback).Equal(fallback))
	assert.Equal(t, "7.25", parseDecimal(" 7.25 ", fallback).String())
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
