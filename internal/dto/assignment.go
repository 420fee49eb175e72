package dto

import "time"

// CreateAssignmentRequest adds coursework to a course.
type CreateAssignmentRequest struct {
	CourseID    string    `json:"course_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   int       `json:"max_points" validate:"required,gt=0,lte=1000"`
}

// UpdateAssignmentRequest edits an assignment; the course cannot change.
type UpdateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   int       `json:"max_points" validate:"required,gt=0,lte=1000"`
}

// GradeSubmissionRequest is the teacher's grading form.
type GradeSubmissionRequest struct {
	Grade    float64 `json:"grade" validate:"gte=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=10000"`
}
