package models

import "time"

// Assignment is coursework with a due date.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	MaxPoints   int       `db:"max_points" json:"max_points"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Submission is the single row a student keeps per assignment.
type Submission struct {
	ID              string     `db:"id" json:"id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	AssignmentID    string     `db:"assignment_id" json:"assignment_id"`
	SubmissionText  *string    `db:"submission_text" json:"submission_text,omitempty"`
	FileURL         *string    `db:"file_url" json:"file_url,omitempty"`
	SubmittedAt     time.Time  `db:"submitted_at" json:"submitted_at"`
	Grade           *float64   `db:"grade" json:"grade,omitempty"`
	Feedback        *string    `db:"feedback" json:"feedback,omitempty"`
	FeedbackFileURL *string    `db:"feedback_file_url" json:"feedback_file_url,omitempty"`
	GradedAt        *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}

// SubmissionDetail is a submission with the context a grader needs.
type SubmissionDetail struct {
	Submission
	StudentName     string `db:"student_name" json:"student_name"`
	AssignmentTitle string `db:"assignment_title" json:"assignment_title"`
	CourseID        string `db:"course_id" json:"course_id"`
	MaxPoints       int    `db:"max_points" json:"max_points"`
}
