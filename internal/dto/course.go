package dto

import (
	"time"

	"github.com/noah-isme/lms-api/internal/models"
)

// CreateCourseRequest is the admin course form.
type CreateCourseRequest struct {
	Title        string              `json:"title" validate:"required,max=200"`
	Description  string              `json:"description" validate:"max=5000"`
	ScheduleTime *time.Time          `json:"schedule_time"`
	LiveClassURL *string             `json:"live_class_url" validate:"omitempty,url"`
	TeacherID    *string             `json:"teacher_id" validate:"omitempty,uuid"`
	MaxStudents  int                 `json:"max_students" validate:"gte=0"`
	Status       models.CourseStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateCourseRequest replaces every editable course field.
type UpdateCourseRequest = CreateCourseRequest

// ConfirmQuery guards destructive endpoints.
type ConfirmQuery struct {
	Confirm bool `form:"confirm"`
}
