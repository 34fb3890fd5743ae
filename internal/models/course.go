package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is the catalogue entry students enroll in.
type Course struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Level     string          `db:"level" json:"level"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Class represents a section of a course students are assigned to.
type Class struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EnrolledCourseStatus mirrors the enrollment outcome on the student record.
type EnrolledCourseStatus string

const (
	EnrolledCourseApproved EnrolledCourseStatus = "approved"
	EnrolledCourseDropped  EnrolledCourseStatus = "dropped"
)

// EnrolledCourse is an entry in a student's enrolled-courses record.
type EnrolledCourse struct {
	StudentID  string               `db:"student_id" json:"student_id"`
	CourseID   string               `db:"course_id" json:"course_id"`
	ClassID    string               `db:"class_id" json:"class_id"`
	Status     EnrolledCourseStatus `db:"status" json:"status"`
	EnrolledAt time.Time            `db:"enrolled_at" json:"enrolled_at"`
	ApprovedAt time.Time            `db:"approved_at" json:"approved_at"`
}
