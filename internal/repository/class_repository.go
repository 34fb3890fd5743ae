package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-billing-api/internal/models"
)

// ClassRepository manages class sections and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, course_id, name, level, capacity, active, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// IsClassAvailable reports whether the class belongs to the course, matches
// the level when one is given, is active and still has a free seat.
func (r *ClassRepository) IsClassAvailable(ctx context.Context, classID, courseID, level string) (bool, error) {
	const query = `SELECT EXISTS(
        SELECT 1 FROM classes c
        WHERE c.id = $1 AND c.course_id = $2 AND c.active = TRUE
          AND ($3 = '' OR c.level = $3)
          AND (c.capacity <= 0 OR (SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id) < c.capacity))`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, courseID, level); err != nil {
		return false, fmt.Errorf("check class availability: %w", err)
	}
	return ok, nil
}

// AddStudent puts a student on the class roster. Adding twice is a no-op.
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string) error {
	const query = `INSERT INTO class_students (class_id, student_id, added_at) VALUES ($1, $2, $3)
ON CONFLICT (class_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add student to class: %w", err)
	}
	return nil
}
