package models

import "time"

// PayrollStatus is the lifecycle of a teacher's lecture attendance record.
type PayrollStatus string

const (
	PayrollStatusScheduled PayrollStatus = "scheduled"
	PayrollStatusCompleted PayrollStatus = "completed"
	PayrollStatusApproved  PayrollStatus = "approved"
	PayrollStatusRejected  PayrollStatus = "rejected"
)

// LectureAttendance is the payroll record of a teacher delivering a lecture.
type LectureAttendance struct {
	ID              string        `db:"id" json:"id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	LectureID       string        `db:"lecture_id" json:"lecture_id"`
	Status          PayrollStatus `db:"status" json:"status"`
	BaseAmount      float64       `db:"base_amount" json:"base_amount"`
	BonusAmount     float64       `db:"bonus_amount" json:"bonus_amount"`
	TotalAmount     float64       `db:"total_amount" json:"total_amount"`
	CompletedAt     *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// TimesheetEntry joins a payroll record with teacher, lecture and course names.
type TimesheetEntry struct {
	LectureAttendance
	TeacherName  string    `db:"teacher_name" json:"teacher_name"`
	LectureTitle string    `db:"lecture_title" json:"lecture_title"`
	CourseID     string    `db:"course_id" json:"course_id"`
	CourseTitle  string    `db:"course_title" json:"course_title"`
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
}

// TimesheetFilter narrows timesheet listings.
type TimesheetFilter struct {
	TeacherID string
	Status    PayrollStatus
}

// PayrollSummary aggregates amounts for one teacher.
type PayrollSummary struct {
	TeacherID     string  `db:"teacher_id" json:"teacher_id"`
	TeacherName   string  `db:"teacher_name" json:"teacher_name"`
	Completed     int     `db:"completed" json:"completed"`
	Approved      int     `db:"approved" json:"approved"`
	Rejected      int     `db:"rejected" json:"rejected"`
	PendingAmount float64 `db:"pending_amount" json:"pending_amount"`
	ApprovedTotal float64 `db:"approved_total" json:"approved_total"`
}

// AttendanceStatus is a student's presence at a lecture.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// StudentAttendance records one student at one lecture.
type StudentAttendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	LectureID  string           `db:"lecture_id" json:"lecture_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
}
