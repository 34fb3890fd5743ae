package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

func newTemplateService(t *testing.T) (*InstallmentTemplateService, *templateStub, *auditStub) {
	t.Helper()
	courses := courseStub{"course-1": {ID: "course-1", Name: "English B1", Price: dec("100000"), Level: "B1", Active: true}}
	templates := &templateStub{}
	audit := &auditStub{}
	settings := settingsStub{settings: defaultCenterSettings}
	return NewInstallmentTemplateService(courses, templates, settings, audit, nil, nil), templates, audit
}

func TestTemplateGetReturnsDefaultWhenMissing(t *testing.T) {
	svc, _, _ := newTemplateService(t)

	tpl, err := svc.Get(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Empty(t, tpl.ID)
	assert.Equal(t, DefaultTemplateEntries(dec("20000")), tpl.Entries)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTemplateUpsertAndDelete(t *testing.T) {
	svc, store, audit := newTemplateService(t)
	ctx := context.Background()
	req := dto.UpsertTemplateRequest{Entries: []models.TemplateEntry{
		{Name: " Deposit ", AmountType: models.AmountTypeFixed, Amount: dec("5000")},
		{Name: "Balance", AmountType: models.AmountTypePercentage, Amount: dec("100"), DueOffsetDays: 30},
	}}

	tpl, err := svc.Upsert(ctx, "course-1", req, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "tpl-course-1", tpl.ID)
	assert.Equal(t, "Deposit", tpl.Entries[0].Name)
	assert.Equal(t, "admin-1", *tpl.UpdatedBy)

	got, err := svc.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2)

	require.NoError(t, svc.Delete(ctx, "course-1", adminActor))
	assert.Empty(t, store.items)
	err = svc.Delete(ctx, "course-1", adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, []string{models.AuditActionTemplateUpsert, models.AuditActionTemplateDelete}, audit.actions())
}

func TestTemplateUpsertRejectsInvalidEntries(t *testing.T) {
	svc, _, _ := newTemplateService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "course-1", dto.UpsertTemplateRequest{}, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	over := dto.UpsertTemplateRequest{Entries: []models.TemplateEntry{
		{Name: "A", AmountType: models.AmountTypePercentage, Amount: dec("70")},
		{Name: "B", AmountType: models.AmountTypePercentage, Amount: dec("40")},
	}}
	_, err = svc.Upsert(ctx, "course-1", over, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	valid := dto.UpsertTemplateRequest{Entries: []models.TemplateEntry{{Name: "A", AmountType: models.AmountTypeFixed, Amount: dec("1")}}}
	_, err = svc.Upsert(ctx, "course-1", valid, studentActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Upsert(ctx, "missing", valid, adminActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTemplateEditDoesNotTouchExistingPayments(t *testing.T) {
	h := newBillingHarness(t)
	ctx := context.Background()
	resp := createEnrollment(t, h, "course-1")
	svc := NewInstallmentTemplateService(h.courses, h.templates, h.settings, h.audit, nil, nil)

	_, err := svc.Upsert(ctx, "course-1", dto.UpsertTemplateRequest{Entries: []models.TemplateEntry{
		{Name: "All", AmountType: models.AmountTypeFixed, Amount: dec("1")},
	}}, adminActor)
	require.NoError(t, err)

	stored := h.payments.get(resp.Payment.ID)
	assert.Len(t, stored.Installments, 5)
}
