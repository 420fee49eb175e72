package dto

// RequestEnrollmentRequest is a student asking to join a course.
type RequestEnrollmentRequest struct {
	CourseID string  `json:"course_id" validate:"required,uuid"`
	Note     *string `json:"note" validate:"omitempty,max=1000"`
}

// EnrollmentRequestQuery filters the admin request list.
type EnrollmentRequestQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
}
