package dto

import (
	"time"

	"github.com/noah-isme/lms-api/internal/models"
)

// AssignmentStatus is the derived state of an assignment for one student.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusSubmitted AssignmentStatus = "submitted"
	AssignmentStatusGraded    AssignmentStatus = "graded"
	AssignmentStatusOverdue   AssignmentStatus = "overdue"
)

// GradeBadge buckets a grade percentage.
type GradeBadge string

const (
	GradeBadgeExcellent        GradeBadge = "excellent"
	GradeBadgeGood             GradeBadge = "good"
	GradeBadgeFair             GradeBadge = "fair"
	GradeBadgeNeedsImprovement GradeBadge = "needs_improvement"
	GradeBadgeUngraded         GradeBadge = "ungraded"
)

// StudentDashboard is the flattened student home page.
type StudentDashboard struct {
	Courses          []StudentCourseView     `json:"courses"`
	Assignments      []StudentAssignmentView `json:"assignments"`
	UpcomingLectures []LectureView           `json:"upcoming_lectures"`
	Recordings       []LectureView           `json:"recordings"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

// StudentCourseView is one enrolled course with progress.
type StudentCourseView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ScheduleTime    *time.Time `json:"schedule_time,omitempty"`
	LiveClassURL    *string    `json:"live_class_url,omitempty"`
	TeacherName     string     `json:"teacher_name"`
	EnrollmentCount int        `json:"enrollment_count"`
	MaxStudents     int        `json:"max_students"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
	Progress        int        `json:"progress"`
}

// StudentAssignmentView is one assignment with the student's submission state.
type StudentAssignmentView struct {
	ID           string             `json:"id"`
	CourseID     string             `json:"course_id"`
	CourseTitle  string             `json:"course_title"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	DueDate      time.Time          `json:"due_date"`
	MaxPoints    int                `json:"max_points"`
	Status       AssignmentStatus   `json:"status"`
	Submittable  bool               `json:"submittable"`
	Submission   *models.Submission `json:"submission,omitempty"`
	GradePercent *float64           `json:"grade_percent,omitempty"`
	GradeBadge   GradeBadge         `json:"grade_badge"`
}

// LectureView is a lecture flattened with its course and recording.
type LectureView struct {
	ID          string                  `json:"id"`
	CourseID    string                  `json:"course_id"`
	CourseTitle string                  `json:"course_title"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	ScheduledAt time.Time               `json:"scheduled_at"`
	Recording   *models.RecordedLecture `json:"recording,omitempty"`
	Attendance  string                  `json:"attendance,omitempty"`
}

// TeacherDashboard is the flattened teacher home page.
type TeacherDashboard struct {
	Courses            []TeacherCourseView       `json:"courses"`
	Lectures           []TeacherLectureView      `json:"lectures"`
	PendingSubmissions []models.SubmissionDetail `json:"pending_submissions"`
	Earnings           EarningsSummary           `json:"earnings"`
	GeneratedAt        time.Time                 `json:"generated_at"`
}

// TeacherCourseView is an owned course with counts.
type TeacherCourseView struct {
	models.Course
	EnrollmentCount int `json:"enrollment_count"`
	LectureCount    int `json:"lecture_count"`
	AssignmentCount int `json:"assignment_count"`
	PendingGrading  int `json:"pending_grading"`
}

// TeacherLectureView is a lecture with its payroll state.
type TeacherLectureView struct {
	LectureView
	PayrollStatus models.PayrollStatus `json:"payroll_status"`
	TotalAmount   float64              `json:"total_amount"`
	CanMarkDone   bool                 `json:"can_mark_done"`
}

// EarningsSummary sums payroll records by state.
type EarningsSummary struct {
	Completed      int     `json:"completed"`
	Approved       int     `json:"approved"`
	Rejected       int     `json:"rejected"`
	PendingAmount  float64 `json:"pending_amount"`
	ApprovedAmount float64 `json:"approved_amount"`
}

// AdminDashboard is the flattened admin home page.
type AdminDashboard struct {
	Stats             AdminStats                       `json:"stats"`
	PendingRequests   []models.EnrollmentRequestDetail `json:"pending_requests"`
	PendingTeachers   []models.Profile                 `json:"pending_teachers"`
	PendingTimesheets []models.TimesheetEntry          `json:"pending_timesheets"`
	PendingPayments   []models.PaymentDetail           `json:"pending_payments"`
	Courses           []models.CourseWithStats         `json:"courses"`
	GeneratedAt       time.Time                        `json:"generated_at"`
}

// AdminStats are the headline counters.
type AdminStats struct {
	Students          int `json:"students"`
	Teachers          int `json:"teachers"`
	Courses           int `json:"courses"`
	Enrollments       int `json:"enrollments"`
	PendingRequests   int `json:"pending_requests"`
	PendingTeachers   int `json:"pending_teachers"`
	PendingTimesheets int `json:"pending_timesheets"`
	PendingPayments   int `json:"pending_payments"`
}

// SystemMetrics is the runtime snapshot shown on the admin system panel.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DashboardBuilds          uint64    `json:"dashboard_builds"`
	AverageDashboardBuildMs  float64   `json:"avg_dashboard_build_ms"`
	Submissions              uint64    `json:"submissions"`
	FallbackSubmissions      uint64    `json:"fallback_submissions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
