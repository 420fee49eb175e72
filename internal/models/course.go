package models

import "time"

// CourseStatus toggles course visibility to students.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "active"
	CourseStatusInactive CourseStatus = "inactive"
)

// Course is a class offering owned by at most one teacher.
type Course struct {
	ID           string       `db:"id" json:"id"`
	Title        string       `db:"title" json:"title"`
	Description  string       `db:"description" json:"description"`
	ScheduleTime *time.Time   `db:"schedule_time" json:"schedule_time,omitempty"`
	LiveClassURL *string      `db:"live_class_url" json:"live_class_url,omitempty"`
	TeacherID    *string      `db:"teacher_id" json:"teacher_id,omitempty"`
	MaxStudents  int          `db:"max_students" json:"max_students"`
	Status       CourseStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseWithStats carries the owning teacher and the live enrollment count.
type CourseWithStats struct {
	Course
	Teacher         Relation[ProfileSummary] `db:"teacher" json:"teacher"`
	EnrollmentCount int                      `db:"enrollment_count" json:"enrollment_count"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	TeacherID string
	Status    CourseStatus
	IDs       []string
	Search    string
}
