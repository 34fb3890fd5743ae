package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-billing-api/internal/models"
)

func TestClassRepositoryIsClassAvailable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClassRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM classes c")).
		WithArgs("class-1", "course-1", "B1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.IsClassAvailable(context.Background(), "class-1", "course-1", "B1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassRepositoryAddStudentIsIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClassRepository(db)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (class_id, student_id) DO NOTHING")).
			WithArgs("class-1", "student-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, int64(1-i)))
	}
	require.NoError(t, repo.AddStudent(context.Background(), "class-1", "student-1"))
	require.NoError(t, repo.AddStudent(context.Background(), "class-1", "student-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentCourseRepositoryAppendUpserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, course_id)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := repo.AppendEnrolledCourse(context.Background(), &models.EnrolledCourse{
		StudentID: "student-1", CourseID: "course-1", ClassID: "class-1",
		Status: models.EnrolledCourseApproved, EnrolledAt: now, ApprovedAt: now,
	})
	require.NoError(t, err)
}

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "level", "active", "created_at"}).
			AddRow("course-1", "Go Basics", "100000.00", "B1", true, time.Now()))

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "100000", course.Price.String())
}
