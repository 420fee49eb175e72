package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type payrollRepository interface {
	MarkComplete(ctx context.Context, teacherID, lectureID string, baseAmount float64) (*models.LectureAttendance, error)
	Approve(ctx context.Context, id string, bonus float64) (*models.LectureAttendance, error)
	Reject(ctx context.Context, id, reason string) (*models.LectureAttendance, error)
	FindByID(ctx context.Context, id string) (*models.LectureAttendance, error)
	List(ctx context.Context, filter models.TimesheetFilter) ([]models.TimesheetEntry, error)
	Summary(ctx context.Context) ([]models.PayrollSummary, error)
}

type lectureFinder interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
}

// PayrollConfig sets lecture pay amounts.
type PayrollConfig struct {
	BaseAmount float64
	Currency   string
}

// PayrollService runs the teacher lecture-completion and timesheet review workflow.
type PayrollService struct {
	repo      payrollRepository
	lectures  lectureFinder
	courses   courseFinder
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PayrollConfig
}

// NewPayrollService constructs a PayrollService.
func NewPayrollService(repo payrollRepository, lectures lectureFinder, courses courseFinder, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PayrollConfig) *PayrollService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseAmount <= 0 {
		cfg.BaseAmount = 150
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &PayrollService{repo: repo, lectures: lectures, courses: courses, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// MarkComplete records that the teacher delivered the lecture. Completed or
// approved lectures are left untouched.
func (s *PayrollService) MarkComplete(ctx context.Context, teacherID, lectureID string) (*models.LectureAttendance, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		return nil, lookupError(err, "lecture not found", "failed to load lecture")
	}
	course, err := s.courses.FindByID(ctx, lecture.CourseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	if err := ensureCourseOwner(Actor{ID: teacherID, Role: models.RoleTeacher}, &course.Course); err != nil {
		return nil, err
	}

	rec, err := s.repo.MarkComplete(ctx, teacherID, lectureID, s.cfg.BaseAmount)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCompleted) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "lecture already marked as completed")
		}
		return nil, writeError(err, "failed to mark lecture complete")
	}
	s.logger.Info("lecture marked complete", zap.String("teacher_id", teacherID), zap.String("lecture_id", lectureID), zap.Float64("amount", rec.TotalAmount))
	invalidate(ctx, s.cache, s.logger, AdminTag, TeacherTag(teacherID))
	return rec, nil
}

// Approve accepts a completed lecture for payment with an optional bonus.
func (s *PayrollService) Approve(ctx context.Context, id string, req dto.ApproveTimesheetRequest) (*models.LectureAttendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	rec, err := s.repo.Approve(ctx, id, req.BonusAmount)
	if err != nil {
		return nil, s.reviewError(err)
	}
	s.metrics.RecordReview("timesheet", "approved")
	invalidate(ctx, s.cache, s.logger, AdminTag, TeacherTag(rec.TeacherID))
	return rec, nil
}

// Reject sends a completed lecture back with a reason.
func (s *PayrollService) Reject(ctx context.Context, id string, req dto.RejectRequest) (*models.LectureAttendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}
	rec, err := s.repo.Reject(ctx, id, req.Reason)
	if err != nil {
		return nil, s.reviewError(err)
	}
	s.metrics.RecordReview("timesheet", "rejected")
	invalidate(ctx, s.cache, s.logger, AdminTag, TeacherTag(rec.TeacherID))
	return rec, nil
}

// List returns timesheet entries. Teachers only see their own.
func (s *PayrollService) List(ctx context.Context, actor Actor, query dto.TimesheetQuery) ([]models.TimesheetEntry, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timesheet filter")
	}
	filter := models.TimesheetFilter{TeacherID: query.TeacherID, Status: models.PayrollStatus(query.Status)}
	if !actor.IsAdmin() {
		filter.TeacherID = actor.ID
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timesheets")
	}
	return entries, nil
}

// Summary aggregates payroll per teacher.
func (s *PayrollService) Summary(ctx context.Context) ([]models.PayrollSummary, error) {
	rows, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise payroll")
	}
	return rows, nil
}

// Export renders the filtered timesheet as CSV or PDF.
func (s *PayrollService) Export(ctx context.Context, actor Actor, query dto.TimesheetQuery) ([]byte, export.Format, string, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	entries, err := s.List(ctx, actor, query)
	if err != nil {
		return nil, "", "", err
	}
	body, err := export.Render(s.timesheetTable(entries), format)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timesheet")
	}
	filename := fmt.Sprintf("timesheet_%s.%s", time.Now().UTC().Format("20060102"), format)
	return body, format, filename, nil
}

func (s *PayrollService) timesheetTable(entries []models.TimesheetEntry) export.Table {
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	rows := make([][]string, 0, len(entries))
	var total float64
	for _, e := range entries {
		completed := ""
		if e.CompletedAt != nil {
			completed = e.CompletedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			e.TeacherName,
			e.CourseTitle,
			e.LectureTitle,
			e.ScheduledAt.Format("2006-01-02"),
			completed,
			string(e.Status),
			money(e.BaseAmount),
			money(e.BonusAmount),
			money(e.TotalAmount),
		})
		if e.Status == models.PayrollStatusApproved {
			total += e.TotalAmount
		}
	}
	return export.Table{
		Title:   "Teacher timesheet (" + s.cfg.Currency + ")",
		Headers: []string{"Teacher", "Course", "Lecture", "Scheduled", "Completed", "Status", "Base", "Bonus", "Total"},
		Rows:    rows,
		Footer:  []string{"Approved total", "", "", "", "", "", "", "", money(total)},
	}
}

func (s *PayrollService) reviewError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidTransition):
		return appErrors.Clone(appErrors.ErrConflict, "only completed lectures can be reviewed")
	case appErrors.IsKind(err, appErrors.KindNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "timesheet entry not found")
	}
	return writeError(err, "failed to review timesheet entry")
}
