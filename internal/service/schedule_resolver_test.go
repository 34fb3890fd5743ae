package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

func sumAmounts(in models.Installments, kind models.AmountType) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range in {
		if inst.AmountType == kind {
			total = total.Add(inst.Amount)
		}
	}
	return total
}

func TestResolveScheduleDefault(t *testing.T) {
	course := &models.Course{ID: "c", Price: dec("100000")}

	got, err := ResolveSchedule(course, nil, dec("20000"), fixedNow)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "Registration Fee", got[0].Name)
	assert.Equal(t, models.AmountTypeFixed, got[0].AmountType)
	assert.Equal(t, fixedNow.AddDate(0, 0, 2), got[0].DueDate)
	for i := 1; i < 5; i++ {
		assert.Equal(t, models.AmountTypePercentage, got[i].AmountType)
		assert.True(t, got[i].Amount.Equal(dec("25000")))
		assert.Equal(t, fixedNow.AddDate(0, 0, 30*i), got[i].DueDate)
	}

	empty, err := ResolveSchedule(course, &models.InstallmentTemplate{}, dec("20000"), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, got, empty)
}

func TestResolveScheduleExactlyOneInitialFee(t *testing.T) {
	course := &models.Course{Price: dec("999")}
	templates := []models.TemplateEntries{
		{{Name: "Only", AmountType: models.AmountTypePercentage, Amount: dec("100")}},
		{
			{Name: "A", AmountType: models.AmountTypePercentage, Amount: dec("50")},
			{Name: "B", AmountType: models.AmountTypeFixed, Amount: dec("10")},
		},
		nil,
	}
	for _, entries := range templates {
		got, err := ResolveSchedule(course, &models.InstallmentTemplate{Entries: entries}, dec("5"), fixedNow)
		require.NoError(t, err)
		payment := models.Payment{Installments: got}
		assert.Equal(t, 1, payment.InitialFeeCount())
		assert.True(t, got[0].IsInitialFee)
	}
}

func TestResolveSchedulePercentagesCoverPrice(t *testing.T) {
	cases := []struct {
		price  string
		shares []string
	}{
		{"100000", []string{"25", "25", "25", "25"}},
		{"1000", []string{"33.33", "33.33", "33.34"}},
		{"999.99", []string{"33.3333", "33.3333", "33.3334"}},
		{"12345.67", []string{"10", "20", "30", "40"}},
		{"1", []string{"33", "33", "34"}},
	}
	for _, tc := range cases {
		t.Run(tc.price, func(t *testing.T) {
			entries := models.TemplateEntries{{Name: "Fee", AmountType: models.AmountTypeFixed, Amount: dec("50")}}
			for i, share := range tc.shares {
				entries = append(entries, models.TemplateEntry{
					Name:          string(rune('A' + i)),
					AmountType:    models.AmountTypePercentage,
					Amount:        dec(share),
					DueOffsetDays: 30 * (i + 1),
				})
			}
			course := &models.Course{Price: dec(tc.price)}

			got, err := ResolveSchedule(course, &models.InstallmentTemplate{Entries: entries}, dec("0"), fixedNow)
			require.NoError(t, err)
			assert.True(t, sumAmounts(got, models.AmountTypePercentage).Equal(course.Price))
			for _, inst := range got {
				assert.True(t, inst.Amount.Equal(inst.Amount.Round(2)), "amounts stay in cents")
				assert.False(t, inst.Amount.IsNegative())
			}
		})
	}
}

func TestResolveSchedulePartialPercentagesDoNotAbsorb(t *testing.T) {
	entries := models.TemplateEntries{
		{Name: "Fee", AmountType: models.AmountTypeFixed, Amount: dec("10")},
		{Name: "Half", AmountType: models.AmountTypePercentage, Amount: dec("50")},
	}
	got, err := ResolveSchedule(&models.Course{Price: dec("301")}, &models.InstallmentTemplate{Entries: entries}, dec("0"), fixedNow)
	require.NoError(t, err)
	assert.True(t, got[1].Amount.Equal(dec("150.5")))
	assert.True(t, got[0].Amount.Equal(dec("10")))
}

func TestResolveScheduleMissingCourse(t *testing.T) {
	_, err := ResolveSchedule(nil, nil, dec("1"), fixedNow)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestValidateTemplateEntries(t *testing.T) {
	valid := models.TemplateEntries{
		{Name: "Fee", AmountType: models.AmountTypeFixed, Amount: dec("100")},
		{Name: "Rest", AmountType: models.AmountTypePercentage, Amount: dec("100"), DueOffsetDays: 30},
	}
	require.NoError(t, ValidateTemplateEntries(valid))
	require.NoError(t, ValidateTemplateEntries(DefaultTemplateEntries(dec("20000"))))

	cases := map[string]models.TemplateEntries{
		"empty":          {},
		"blank name":     {{Name: " ", AmountType: models.AmountTypeFixed, Amount: dec("1")}},
		"duplicate":      {{Name: "A", AmountType: models.AmountTypeFixed, Amount: dec("1")}, {Name: "A", AmountType: models.AmountTypeFixed, Amount: dec("1")}},
		"unknown type":   {{Name: "A", AmountType: "ratio", Amount: dec("1")}},
		"negative":       {{Name: "A", AmountType: models.AmountTypeFixed, Amount: dec("-1")}},
		"negative due":   {{Name: "A", AmountType: models.AmountTypeFixed, Amount: dec("1"), DueOffsetDays: -1}},
		"over a hundred": {{Name: "A", AmountType: models.AmountTypePercentage, Amount: dec("60")}, {Name: "B", AmountType: models.AmountTypePercentage, Amount: dec("41")}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateTemplateEntries(entries)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
		})
	}
}
