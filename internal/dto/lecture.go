package dto

import "time"

// CreateLectureRequest schedules a lecture in a course.
type CreateLectureRequest struct {
	CourseID    string    `json:"course_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// UpdateLectureRequest edits lecture details; the course cannot change.
type UpdateLectureRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// AttachRecordingRequest sets the lecture's recorded video.
type AttachRecordingRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	VideoURL string `json:"video_url" validate:"required,url"`
}

// AttendanceEntry is one student's presence at a lecture.
type AttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
}

// RecordAttendanceRequest records presence for several students at once.
type RecordAttendanceRequest struct {
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}
