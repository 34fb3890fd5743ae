package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

const (
	// RegistrationFeeInstallment names the first step of the default schedule.
	RegistrationFeeInstallment = "Registration Fee"
	registrationFeeDueDays     = 2
	defaultInstallmentCount    = 4
	defaultInstallmentShare    = 25
	defaultInstallmentSpacing  = 30
)

var hundred = decimal.NewFromInt(100)

// DefaultTemplateEntries returns the schedule applied when a course has no
// template: the registration fee in two days, then four quarters of the price
// every thirty days.
func DefaultTemplateEntries(registrationFee decimal.Decimal) models.TemplateEntries {
	entries := models.TemplateEntries{{
		Name:          RegistrationFeeInstallment,
		AmountType:    models.AmountTypeFixed,
		Amount:        registrationFee,
		DueOffsetDays: registrationFeeDueDays,
	}}
	for i := 1; i <= defaultInstallmentCount; i++ {
		entries = append(entries, models.TemplateEntry{
			Name:          fmt.Sprintf("Installment %d", i),
			AmountType:    models.AmountTypePercentage,
			Amount:        decimal.NewFromInt(defaultInstallmentShare),
			DueOffsetDays: i * defaultInstallmentSpacing,
		})
	}
	return entries
}

// ResolveSchedule turns the template of a course into absolute installments
// due relative to now. A nil or empty template yields the default schedule.
// Percentage entries resolve against the course price rounded to cents; when
// they add up to exactly 100 the last one absorbs the rounding remainder so
// the percentage installments cover the price exactly. The first entry is the
// initial fee.
func ResolveSchedule(course *models.Course, template *models.InstallmentTemplate, registrationFee decimal.Decimal, now time.Time) (models.Installments, error) {
	if course == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	entries := DefaultTemplateEntries(registrationFee)
	if template != nil && len(template.Entries) > 0 {
		entries = template.Entries
	}

	lastPercentage := -1
	for i, entry := range entries {
		if entry.AmountType == models.AmountTypePercentage {
			lastPercentage = i
		}
	}
	absorbRemainder := entries.PercentageTotal().Equal(hundred)

	installments := make(models.Installments, 0, len(entries))
	allocated := decimal.Zero
	for i, entry := range entries {
		amount := entry.Amount
		if entry.AmountType == models.AmountTypePercentage {
			if absorbRemainder && i == lastPercentage {
				amount = course.Price.Sub(allocated)
			} else {
				amount = course.Price.Mul(entry.Amount).Div(hundred).Round(2)
			}
			allocated = allocated.Add(amount)
		}
		installments = append(installments, models.Installment{
			Name:         entry.Name,
			AmountType:   entry.AmountType,
			Amount:       amount,
			Status:       models.InstallmentUnpaid,
			DueDate:      now.AddDate(0, 0, entry.DueOffsetDays),
			IsInitialFee: i == 0,
		})
	}
	return installments, nil
}

// ValidateTemplateEntries enforces the authoring rules of an installment
// template.
func ValidateTemplateEntries(entries models.TemplateEntries) error {
	if len(entries) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "template requires at least one installment")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return appErrors.Clone(appErrors.ErrValidation, "installment name is required")
		}
		if _, dup := seen[name]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %q is defined twice", name))
		}
		seen[name] = struct{}{}
		if !entry.AmountType.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %q has an unknown amount type", name))
		}
		if entry.Amount.IsNegative() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %q has a negative amount", name))
		}
		if entry.DueOffsetDays < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("installment %q has a negative due offset", name))
		}
	}
	if entries.PercentageTotal().GreaterThan(hundred) {
		return appErrors.Clone(appErrors.ErrValidation, "percentage installments exceed 100%")
	}
	return nil
}
