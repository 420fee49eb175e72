package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithStats, error)
	FindByID(ctx context.Context, id string) (*models.CourseWithStats, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type profileLookup interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

// CourseService manages the admin course panel and the student catalog.
type CourseService struct {
	repo      courseRepository
	profiles  profileLookup
	roster    rosterLookup
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, profiles profileLookup, roster rosterLookup, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, profiles: profiles, roster: roster, cache: cache, validator: validate, logger: logger}
}

// List returns courses matching the filter. Students only ever see active courses.
func (s *CourseService) List(ctx context.Context, actor Actor, filter models.CourseFilter) ([]models.CourseWithStats, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.Status = models.CourseStatusActive
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	}
	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseWithStats, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	return course, nil
}

// Create adds a course.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest) (*models.CourseWithStats, error) {
	course, err := s.buildCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, writeError(err, "failed to create course")
	}
	s.afterWrite(ctx, nil, course.TeacherID)
	return s.Get(ctx, course.ID)
}

// Update replaces the editable fields of a course.
func (s *CourseService) Update(ctx context.Context, id string, req dto.UpdateCourseRequest) (*models.CourseWithStats, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.buildCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	course.ID = existing.ID
	course.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, writeError(err, "failed to update course")
	}
	s.afterWrite(ctx, rosterTags(ctx, s.roster, s.logger, id), course.TeacherID, existing.TeacherID)
	return s.Get(ctx, id)
}

// Delete removes a course and its dependent rows. confirm must be set.
func (s *CourseService) Delete(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "deleting a course requires confirm=true")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// enrollments cascade with the course
	students := rosterTags(ctx, s.roster, s.logger, id)
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete course")
	}
	s.logger.Info("course deleted", zap.String("course_id", id))
	s.afterWrite(ctx, students, existing.TeacherID)
	return nil
}

func (s *CourseService) buildCourse(ctx context.Context, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	status := req.Status
	if status == "" {
		status = models.CourseStatusActive
	}
	var teacherID *string
	if req.TeacherID != nil && *req.TeacherID != "" {
		teacher, err := s.profiles.FindByID(ctx, *req.TeacherID)
		if err != nil {
			return nil, lookupError(err, "teacher not found", "failed to load teacher")
		}
		if teacher.Role != models.RoleTeacher || !teacher.Approved {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id must reference an approved teacher")
		}
		teacherID = stringPtr(teacher.ID)
	}
	var liveURL *string
	if req.LiveClassURL != nil && strings.TrimSpace(*req.LiveClassURL) != "" {
		liveURL = stringPtr(strings.TrimSpace(*req.LiveClassURL))
	}
	return &models.Course{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		ScheduleTime: req.ScheduleTime,
		LiveClassURL: liveURL,
		TeacherID:    teacherID,
		MaxStudents:  req.MaxStudents,
		Status:       status,
	}, nil
}

func (s *CourseService) afterWrite(ctx context.Context, studentTags []string, teacherIDs ...*string) {
	tags := append([]string{AdminTag}, studentTags...)
	for _, id := range teacherIDs {
		if id != nil {
			tags = append(tags, TeacherTag(*id))
		}
	}
	invalidate(ctx, s.cache, s.logger, tags...)
}
