package models

import "time"

// RequestStatus is the lifecycle state of an enrollment request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// EnrollmentRequest is a student's intent to join a course.
type EnrollmentRequest struct {
	ID         string        `db:"id" json:"id"`
	StudentID  string        `db:"student_id" json:"student_id"`
	CourseID   string        `db:"course_id" json:"course_id"`
	Status     RequestStatus `db:"status" json:"status"`
	Note       *string       `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	ReviewedAt *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
}

// EnrollmentRequestDetail adds the student and course shown on the admin panel.
type EnrollmentRequestDetail struct {
	EnrollmentRequest
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}
