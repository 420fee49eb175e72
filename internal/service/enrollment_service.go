package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type enrollmentRepository interface {
	CreateRequest(ctx context.Context, req *models.EnrollmentRequest) error
	HasOpenRequestOrEnrollment(ctx context.Context, studentID, courseID string) (bool, error)
	FindRequest(ctx context.Context, id string) (*models.EnrollmentRequest, error)
	ListRequests(ctx context.Context, status models.RequestStatus) ([]models.EnrollmentRequestDetail, error)
	ListRequestsByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error)
	ApproveRequest(ctx context.Context, id, reviewerID string, enforceCapacity bool) (*repository.ApprovalOutcome, error)
	RejectRequest(ctx context.Context, id, reviewerID string) error
	ListStudentsByCourse(ctx context.Context, courseID string) ([]models.ProfileSummary, error)
	Delete(ctx context.Context, id string) (*models.Enrollment, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.CourseWithStats, error)
}

// EnrollmentConfig holds approval policy switches.
type EnrollmentConfig struct {
	EnforceCapacity bool
}

// EnrollmentService runs the request → review → enrollment workflow.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseFinder
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentConfig
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseFinder, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EnrollmentConfig) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, cache: cache, metrics: metrics, validator: validate, logger: logger, cfg: cfg}
}

// Request records a student's intent to join an active course.
func (s *EnrollmentService) Request(ctx context.Context, studentID string, req dto.RequestEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for enrollment")
	}
	exists, err := s.repo.HasOpenRequestOrEnrollment(ctx, studentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled or awaiting approval for this course")
	}

	request := &models.EnrollmentRequest{StudentID: studentID, CourseID: req.CourseID, Note: req.Note}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, writeError(err, "failed to create enrollment request")
	}
	invalidate(ctx, s.cache, s.logger, AdminTag, StudentTag(studentID))
	return request, nil
}

// ListRequests returns requests for the admin panel; empty status lists all.
func (s *EnrollmentService) ListRequests(ctx context.Context, query dto.EnrollmentRequestQuery) ([]models.EnrollmentRequestDetail, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status filter")
	}
	requests, err := s.repo.ListRequests(ctx, models.RequestStatus(query.Status))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	return requests, nil
}

// ListMine returns the student's own requests.
func (s *EnrollmentService) ListMine(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error) {
	requests, err := s.repo.ListRequestsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	return requests, nil
}

// Approve enrolls the student and marks the request approved atomically.
func (s *EnrollmentService) Approve(ctx context.Context, adminID, requestID string) (*models.Enrollment, error) {
	outcome, err := s.repo.ApproveRequest(ctx, requestID, adminID, s.cfg.EnforceCapacity)
	if err != nil {
		return nil, s.reviewError(err)
	}
	if outcome.MaxStudents > 0 && outcome.Enrolled > outcome.MaxStudents {
		s.logger.Warn("course enrollment exceeds capacity",
			zap.String("course_id", outcome.Enrollment.CourseID),
			zap.Int("enrolled", outcome.Enrolled),
			zap.Int("max_students", outcome.MaxStudents))
	}
	s.metrics.RecordReview("enrollment", "approved")
	s.afterReview(ctx, outcome.Enrollment.StudentID, outcome.Enrollment.CourseID)
	return &outcome.Enrollment, nil
}

// Reject closes a pending request without enrolling.
func (s *EnrollmentService) Reject(ctx context.Context, adminID, requestID string) error {
	if err := s.repo.RejectRequest(ctx, requestID, adminID); err != nil {
		return s.reviewError(err)
	}
	s.metrics.RecordReview("enrollment", "rejected")
	if req, err := s.repo.FindRequest(ctx, requestID); err == nil {
		invalidate(ctx, s.cache, s.logger, AdminTag, StudentTag(req.StudentID))
	} else {
		invalidate(ctx, s.cache, s.logger, AdminTag)
	}
	return nil
}

// DeleteEnrollment removes an existing enrollment.
func (s *EnrollmentService) DeleteEnrollment(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.repo.Delete(ctx, enrollmentID)
	if err != nil {
		return writeError(err, "failed to delete enrollment")
	}
	s.afterReview(ctx, enrollment.StudentID, enrollment.CourseID)
	return nil
}

// CourseStudents lists the students enrolled in a course the actor may see.
func (s *EnrollmentService) CourseStudents(ctx context.Context, actor Actor, courseID string) ([]models.ProfileSummary, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	if err := ensureCourseOwner(actor, &course.Course); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *EnrollmentService) reviewError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRequestNotPending):
		return appErrors.Clone(appErrors.ErrConflict, "enrollment request has already been reviewed")
	case errors.Is(err, repository.ErrCourseFull):
		return appErrors.Clone(appErrors.ErrConflict, "course has reached its maximum number of students")
	case appErrors.IsKind(err, appErrors.KindNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
	}
	return writeError(err, "failed to review enrollment request")
}

func (s *EnrollmentService) afterReview(ctx context.Context, studentID, courseID string) {
	tags := []string{AdminTag, StudentTag(studentID)}
	if course, err := s.courses.FindByID(ctx, courseID); err == nil && course.TeacherID != nil {
		tags = append(tags, TeacherTag(*course.TeacherID))
	}
	invalidate(ctx, s.cache, s.logger, tags...)
}
