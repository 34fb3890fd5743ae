package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
)

type templateServiceMock struct {
	upserted  dto.UpsertTemplateRequest
	deletedID string
}

func (m *templateServiceMock) Get(ctx context.Context, courseID string) (*models.InstallmentTemplate, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "installment template not found")
}

func (m *templateServiceMock) Upsert(ctx context.Context, courseID string, req dto.UpsertTemplateRequest, actor models.Actor) (*models.InstallmentTemplate, error) {
	m.upserted = req
	return &models.InstallmentTemplate{CourseID: courseID, Entries: req.Entries}, nil
}

func (m *templateServiceMock) Delete(ctx context.Context, courseID string, actor models.Actor) error {
	m.deletedID = courseID
	return nil
}

func TestInstallmentTemplateHandlerUpsert(t *testing.T) {
	mock := &templateServiceMock{}
	handler := NewInstallmentTemplateHandler(mock)
	body := `{"entries":[{"name":"Registration Fee","amount_type":"fixed","amount":"20000","due_offset_days":2},{"name":"Balance","amount_type":"percentage","amount":"100","due_offset_days":30}]}`
	c, w := newTestContext(http.MethodPut, "/courses/course-1/installment-template", body, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Upsert(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.upserted.Entries, 2)
	assert.Equal(t, "Balance", mock.upserted.Entries[1].Name)
}

func TestInstallmentTemplateHandlerGetMissing(t *testing.T) {
	handler := NewInstallmentTemplateHandler(&templateServiceMock{})
	c, w := newTestContext(http.MethodGet, "/courses/course-1/installment-template", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInstallmentTemplateHandlerDelete(t *testing.T) {
	mock := &templateServiceMock{}
	handler := NewInstallmentTemplateHandler(mock)
	c, w := newTestContext(http.MethodDelete, "/courses/course-1/installment-template", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "course-1", mock.deletedID)
}
