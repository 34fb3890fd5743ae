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

type enrollmentServiceMock struct {
	approveErr  error
	lastActor   models.Actor
	lastFilter  models.EnrollmentFilter
	lastApprove dto.ApproveEnrollmentRequest
	deleteResp  *dto.DeleteEnrollmentResult
}

func (m *enrollmentServiceMock) CreateRequest(ctx context.Context, req dto.CreateEnrollmentRequest, actor models.Actor) (*dto.EnrollmentResponse, error) {
	m.lastActor = actor
	return &dto.EnrollmentResponse{Enrollment: &models.EnrollmentRequestDetail{EnrollmentRequest: models.EnrollmentRequest{
		ID: "enr-1", StudentID: actor.UserID, CourseID: req.CourseID, Status: models.EnrollmentStatusPending,
	}}}, nil
}

func (m *enrollmentServiceMock) Preconditions(ctx context.Context, id, classID, adminNotes string, actor models.Actor) (*dto.ApprovalCheck, error) {
	failed := []string{}
	if classID == "" {
		failed = append(failed, "a class must be assigned")
	}
	return &dto.ApprovalCheck{CanApprove: len(failed) == 0, Failed: failed}, nil
}

func (m *enrollmentServiceMock) Approve(ctx context.Context, id string, req dto.ApproveEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	m.lastApprove = req
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &models.EnrollmentRequestDetail{EnrollmentRequest: models.EnrollmentRequest{ID: id, Status: models.EnrollmentStatusApproved}}, nil
}

func (m *enrollmentServiceMock) SyncApproved(ctx context.Context, id string, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	return &models.EnrollmentRequestDetail{EnrollmentRequest: models.EnrollmentRequest{ID: id, Status: models.EnrollmentStatusApproved}}, nil
}

func (m *enrollmentServiceMock) Reject(ctx context.Context, id string, req dto.RejectEnrollmentRequest, actor models.Actor) (*models.EnrollmentRequestDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment request is approved, not pending")
}

func (m *enrollmentServiceMock) Delete(ctx context.Context, id string, actor models.Actor) (*dto.DeleteEnrollmentResult, error) {
	return m.deleteResp, nil
}

func (m *enrollmentServiceMock) ExpireStale(ctx context.Context, actor models.Actor) (*dto.ExpireEnrollmentsResult, error) {
	return &dto.ExpireEnrollmentsResult{Expired: []string{"enr-9"}}, nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string, actor models.Actor) (*dto.EnrollmentResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter, actor models.Actor) ([]models.EnrollmentRequestDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.EnrollmentRequestDetail{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func TestEnrollmentHandlerRequiresClaims(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodPost, "/enrollments", dto.CreateEnrollmentRequest{CourseID: "course-1"}, nil)

	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerCreate(t *testing.T) {
	mock := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mock)
	c, w := newTestContext(http.MethodPost, "/enrollments", dto.CreateEnrollmentRequest{CourseID: "course-1"}, studentClaims())

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student-1", mock.lastActor.UserID)
	assert.Equal(t, models.RoleStudent, mock.lastActor.Role)
}

func TestEnrollmentHandlerCreateInvalidBody(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodPost, "/enrollments", "invalid", studentClaims())

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerApprovePreconditionFailed(t *testing.T) {
	err := appErrors.Details(appErrors.Clone(appErrors.ErrPreconditionFailed, "registration fee has not been paid"),
		map[string]interface{}{"failed": []string{"registration fee has not been paid", "a class must be assigned"}})
	mock := &enrollmentServiceMock{approveErr: err}
	handler := NewEnrollmentHandler(mock)
	c, w := newTestContext(http.MethodPost, "/enrollments/enr-1/approve", dto.ApproveEnrollmentRequest{AdminNotes: "ok"}, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PRECONDITION_FAILED", env.Error.Code)
	assert.Len(t, env.Error.Details["failed"], 2)
	assert.Equal(t, "ok", mock.lastApprove.AdminNotes)
}

func TestEnrollmentHandlerRejectInvalidTransition(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodPost, "/enrollments/enr-1/reject", dto.RejectEnrollmentRequest{AdminNotes: "no"}, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode(t, w).Error.Code)
}

func TestEnrollmentHandlerPreconditionsReadsQuery(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodGet, "/enrollments/enr-1/preconditions?classId=class-1", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Preconditions(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"can_approve":true}`, string(decode(t, w).Data))
}

func TestEnrollmentHandlerListFilters(t *testing.T) {
	mock := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mock)
	c, w := newTestContext(http.MethodGet, "/enrollments?status=PENDING&courseId=course-1&page=2&limit=5", nil, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EnrollmentStatusPending, mock.lastFilter.Status)
	assert.Equal(t, "course-1", mock.lastFilter.CourseID)
	assert.Equal(t, 2, mock.lastFilter.Page)
	assert.Equal(t, 5, mock.lastFilter.PageSize)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodGet, "/enrollments/missing", nil, adminClaims())
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerExpire(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})
	c, w := newTestContext(http.MethodPost, "/enrollments/expire", nil, adminClaims())

	handler.Expire(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired":["enr-9"]}`, string(decode(t, w).Data))
}
