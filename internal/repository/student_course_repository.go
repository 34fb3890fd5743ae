package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-billing-api/internal/models"
)

// StudentCourseRepository maintains the enrolled-courses record of students.
type StudentCourseRepository struct {
	db *sqlx.DB
}

// NewStudentCourseRepository constructs the repository.
func NewStudentCourseRepository(db *sqlx.DB) *StudentCourseRepository {
	return &StudentCourseRepository{db: db}
}

// AppendEnrolledCourse records the course on the student. Repeating the call
// for the same course overwrites the entry instead of duplicating it.
func (r *StudentCourseRepository) AppendEnrolledCourse(ctx context.Context, entry *models.EnrolledCourse) error {
	const query = `INSERT INTO student_courses (student_id, course_id, class_id, status, enrolled_at, approved_at)
VALUES (:student_id, :course_id, :class_id, :status, :enrolled_at, :approved_at)
ON CONFLICT (student_id, course_id)
DO UPDATE SET class_id = EXCLUDED.class_id, status = EXCLUDED.status, approved_at = EXCLUDED.approved_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append enrolled course: %w", err)
	}
	return nil
}
