package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/models"
)

func TestInstallmentTemplateRepositoryUpsertReturnsStoredID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInstallmentTemplateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (course_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tpl-existing"))

	tpl := &models.InstallmentTemplate{
		CourseID: "course-1",
		Entries: models.TemplateEntries{
			{Name: "Deposit", AmountType: models.AmountTypeFixed, Amount: decimal.NewFromInt(5000), DueOffsetDays: 1},
		},
	}
	require.NoError(t, repo.Upsert(context.Background(), tpl))
	assert.Equal(t, "tpl-existing", tpl.ID)
}

func TestInstallmentTemplateRepositoryFindByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewInstallmentTemplateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM installment_templates WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "entries", "updated_by", "updated_at"}).
			AddRow("tpl-1", "course-1", `[{"name":"Deposit","amount_type":"percentage","amount":"50","due_offset_days":0}]`, nil, time.Now()))

	tpl, err := repo.FindByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, tpl.Entries, 1)
	assert.Equal(t, models.AmountTypePercentage, tpl.Entries[0].AmountType)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM installment_templates")).
		WithArgs("course-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.DeleteByCourse(context.Background(), "course-2"), sql.ErrNoRows)
}
