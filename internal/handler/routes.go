package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Dashboard   *DashboardHandler
	Courses     *CourseHandler
	Lectures    *LectureHandler
	Assignments *AssignmentHandler
	Submissions *SubmissionHandler
	Enrollments *EnrollmentHandler
	Payroll     *PayrollHandler
	Payments    *PaymentHandler
	Profiles    *ProfileHandler
	Events      *EventHandler
	Metrics     *MetricsHandler
}

// RouteDeps are the cross-cutting pieces the routes need.
type RouteDeps struct {
	Tokens     middleware.TokenValidator
	CookieName string
	Audit      middleware.AuditWriter
	Logger     *zap.Logger
}

// RegisterRoutes mounts the API on group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, deps RouteDeps) {
	auth := middleware.JWT(deps.Tokens, deps.CookieName)
	student := middleware.RequireRoles(models.RoleStudent)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource)
	}

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)
	authGroup.GET("/me", auth, h.Auth.Me)

	secured := api.Group("", auth)

	secured.GET("/events", h.Events.Stream)

	dashboard := secured.Group("/dashboard")
	dashboard.GET("/student", student, h.Dashboard.Student)
	dashboard.GET("/teacher", teacher, h.Dashboard.Teacher)
	dashboard.GET("/admin", admin, h.Dashboard.Admin)

	courses := secured.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.POST("", admin, audit(models.AuditActionCreate, "course"), h.Courses.Create)
	courses.PUT("/:id", admin, audit(models.AuditActionUpdate, "course"), h.Courses.Update)
	courses.DELETE("/:id", admin, audit(models.AuditActionDelete, "course"), h.Courses.Delete)
	courses.GET("/:id/lectures", h.Lectures.ListByCourse)
	courses.GET("/:id/assignments", h.Assignments.ListByCourse)
	courses.GET("/:id/students", staff, h.Enrollments.CourseStudents)
	courses.GET("/:id/gradebook", staff, h.Assignments.Gradebook)

	lectures := secured.Group("/lectures")
	lectures.POST("", staff, h.Lectures.Create)
	lectures.PUT("/:id", staff, h.Lectures.Update)
	lectures.DELETE("/:id", staff, audit(models.AuditActionDelete, "lecture"), h.Lectures.Delete)
	lectures.PUT("/:id/recording", staff, h.Lectures.AttachRecording)
	lectures.GET("/:id/attendance", staff, h.Lectures.Attendance)
	lectures.PUT("/:id/attendance", staff, h.Lectures.RecordAttendance)
	lectures.POST("/:id/complete", teacher, h.Payroll.MarkComplete)

	assignments := secured.Group("/assignments")
	assignments.POST("", staff, h.Assignments.Create)
	assignments.PUT("/:id", staff, h.Assignments.Update)
	assignments.DELETE("/:id", staff, audit(models.AuditActionDelete, "assignment"), h.Assignments.Delete)
	assignments.GET("/:id/submissions", staff, h.Assignments.Submissions)
	assignments.POST("/:id/submit", student, h.Submissions.Submit)

	submissions := secured.Group("/submissions")
	submissions.GET("/mine", student, h.Submissions.Mine)
	submissions.PUT("/:id/grade", staff, h.Assignments.Grade)

	api.POST("/submit-assignment", middleware.OptionalJWT(deps.Tokens, deps.CookieName), h.Submissions.SubmitAssignmentFallback)

	requests := secured.Group("/enrollment-requests")
	requests.POST("", student, h.Enrollments.RequestEnrollment)
	requests.GET("/mine", student, h.Enrollments.Mine)
	requests.GET("", admin, h.Enrollments.ListRequests)
	requests.POST("/:id/approve", admin, audit(models.AuditActionApprove, "enrollment_request"), h.Enrollments.Approve)
	requests.POST("/:id/reject", admin, audit(models.AuditActionReject, "enrollment_request"), h.Enrollments.Reject)
	secured.DELETE("/enrollments/:id", admin, audit(models.AuditActionDelete, "enrollment"), h.Enrollments.Delete)

	timesheets := secured.Group("/timesheets")
	timesheets.GET("", staff, h.Payroll.List)
	timesheets.GET("/export", staff, h.Payroll.Export)
	timesheets.POST("/:id/approve", admin, audit(models.AuditActionApprove, "timesheet"), h.Payroll.Approve)
	timesheets.POST("/:id/reject", admin, audit(models.AuditActionReject, "timesheet"), h.Payroll.Reject)
	secured.GET("/payroll/summary", admin, h.Payroll.Summary)

	payments := secured.Group("/payments")
	payments.POST("", student, h.Payments.Create)
	payments.GET("", middleware.RequireRoles(models.RoleStudent, models.RoleAdmin), h.Payments.List)
	payments.POST("/:id/approve", admin, audit(models.AuditActionApprove, "payment"), h.Payments.Approve)
	payments.POST("/:id/reject", admin, audit(models.AuditActionReject, "payment"), h.Payments.Reject)

	adminGroup := secured.Group("/admin", admin)
	adminGroup.GET("/teachers", h.Profiles.Teachers)
	adminGroup.GET("/students", h.Profiles.Students)
	adminGroup.POST("/teachers/:id/approve", audit(models.AuditActionApprove, "teacher"), h.Profiles.ApproveTeacher)
	adminGroup.DELETE("/teachers/:id", audit(models.AuditActionReject, "teacher"), h.Profiles.RejectTeacher)
	adminGroup.GET("/system", h.Metrics.System)
}
