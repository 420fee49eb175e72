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

type lectureRepository interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Lecture, error)
	ListWithRecordings(ctx context.Context, courseIDs []string) ([]models.LectureWithRecording, error)
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	Create(ctx context.Context, lecture *models.Lecture) error
	Update(ctx context.Context, lecture *models.Lecture) error
	Delete(ctx context.Context, id string) error
	UpsertRecording(ctx context.Context, rec *models.RecordedLecture) error
}

type studentAttendanceRepository interface {
	Record(ctx context.Context, lectureID string, entries []models.StudentAttendance) error
	ListByStudent(ctx context.Context, studentID string, lectureIDs []string) ([]models.StudentAttendance, error)
	ListByLecture(ctx context.Context, lectureID string) ([]models.StudentAttendance, error)
}

type rosterLookup interface {
	ListStudentsByCourse(ctx context.Context, courseID string) ([]models.ProfileSummary, error)
}

// listLecturesWithRecordings embeds recordings when possible. A missing
// recordings relation degrades to plain lectures without recordings.
func listLecturesWithRecordings(ctx context.Context, repo lectureRepository, logger *zap.Logger, courseIDs []string) ([]models.LectureWithRecording, error) {
	lectures, err := repo.ListWithRecordings(ctx, courseIDs)
	if err == nil {
		return lectures, nil
	}
	if !appErrors.IsKind(err, appErrors.KindRelationMissing) {
		return nil, err
	}
	logger.Warn("recordings unavailable, listing lectures without them", zap.Error(err))
	plain, err := repo.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, err
	}
	out := make([]models.LectureWithRecording, len(plain))
	for i, l := range plain {
		out[i] = models.LectureWithRecording{Lecture: l}
	}
	return out, nil
}

// LectureService manages lectures, recordings and student attendance.
type LectureService struct {
	repo       lectureRepository
	courses    courseFinder
	roster     rosterLookup
	attendance studentAttendanceRepository
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewLectureService constructs a LectureService.
func NewLectureService(repo lectureRepository, courses courseFinder, roster rosterLookup, attendance studentAttendanceRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *LectureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LectureService{repo: repo, courses: courses, roster: roster, attendance: attendance, cache: cache, validator: validate, logger: logger}
}

// ListByCourse returns a course's lectures with recordings.
func (s *LectureService) ListByCourse(ctx context.Context, courseID string) ([]models.LectureWithRecording, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	lectures, err := listLecturesWithRecordings(ctx, s.repo, s.logger, []string{courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
	}
	return lectures, nil
}

// Create schedules a lecture in a course the actor owns.
func (s *LectureService) Create(ctx context.Context, actor Actor, req dto.CreateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	course, err := s.ownedCourse(ctx, actor, req.CourseID)
	if err != nil {
		return nil, err
	}
	lecture := &models.Lecture{
		CourseID:    req.CourseID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ScheduledAt: req.ScheduledAt.UTC(),
	}
	if err := s.repo.Create(ctx, lecture); err != nil {
		return nil, writeError(err, "failed to create lecture")
	}
	s.afterWrite(ctx, course)
	return lecture, nil
}

// Update edits a lecture.
func (s *LectureService) Update(ctx context.Context, actor Actor, id string, req dto.UpdateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	lecture, course, err := s.ownedLecture(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	lecture.Title = strings.TrimSpace(req.Title)
	lecture.Description = req.Description
	lecture.ScheduledAt = req.ScheduledAt.UTC()
	if err := s.repo.Update(ctx, lecture); err != nil {
		return nil, writeError(err, "failed to update lecture")
	}
	s.afterWrite(ctx, course)
	return lecture, nil
}

// Delete removes a lecture. confirm must be set.
func (s *LectureService) Delete(ctx context.Context, actor Actor, id string, confirm bool) error {
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "deleting a lecture requires confirm=true")
	}
	_, course, err := s.ownedLecture(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete lecture")
	}
	s.afterWrite(ctx, course)
	return nil
}

// AttachRecording sets or replaces the lecture's recording.
func (s *LectureService) AttachRecording(ctx context.Context, actor Actor, lectureID string, req dto.AttachRecordingRequest) (*models.RecordedLecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recording payload")
	}
	_, course, err := s.ownedLecture(ctx, actor, lectureID)
	if err != nil {
		return nil, err
	}
	rec := &models.RecordedLecture{LectureID: lectureID, Title: strings.TrimSpace(req.Title), VideoURL: req.VideoURL}
	if err := s.repo.UpsertRecording(ctx, rec); err != nil {
		return nil, writeError(err, "failed to attach recording")
	}
	s.afterWrite(ctx, course)
	return rec, nil
}

// RecordAttendance stores presence for enrolled students of the lecture's course.
func (s *LectureService) RecordAttendance(ctx context.Context, actor Actor, lectureID string, req dto.RecordAttendanceRequest) ([]models.StudentAttendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	_, course, err := s.ownedLecture(ctx, actor, lectureID)
	if err != nil {
		return nil, err
	}
	students, err := s.roster.ListStudentsByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, st := range students {
		enrolled[st.ID] = struct{}{}
	}

	entries := make([]models.StudentAttendance, 0, len(req.Entries))
	for _, e := range req.Entries {
		if _, ok := enrolled[e.StudentID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student "+e.StudentID+" is not enrolled in this course")
		}
		entries = append(entries, models.StudentAttendance{StudentID: e.StudentID, LectureID: lectureID, Status: models.AttendanceStatus(e.Status)})
	}
	if err := s.attendance.Record(ctx, lectureID, entries); err != nil {
		return nil, writeError(err, "failed to record attendance")
	}

	tags := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		tags = append(tags, StudentTag(e.StudentID))
	}
	if course.TeacherID != nil {
		tags = append(tags, TeacherTag(*course.TeacherID))
	}
	invalidate(ctx, s.cache, s.logger, tags...)
	return s.attendance.ListByLecture(ctx, lectureID)
}

// Attendance lists recorded presence for a lecture.
func (s *LectureService) Attendance(ctx context.Context, actor Actor, lectureID string) ([]models.StudentAttendance, error) {
	if _, _, err := s.ownedLecture(ctx, actor, lectureID); err != nil {
		return nil, err
	}
	rows, err := s.attendance.ListByLecture(ctx, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, nil
}

func (s *LectureService) ownedCourse(ctx context.Context, actor Actor, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	if err := ensureCourseOwner(actor, &course.Course); err != nil {
		return nil, err
	}
	return &course.Course, nil
}

func (s *LectureService) ownedLecture(ctx context.Context, actor Actor, lectureID string) (*models.Lecture, *models.Course, error) {
	lecture, err := s.repo.FindByID(ctx, lectureID)
	if err != nil {
		return nil, nil, lookupError(err, "lecture not found", "failed to load lecture")
	}
	course, err := s.ownedCourse(ctx, actor, lecture.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return lecture, course, nil
}

func (s *LectureService) afterWrite(ctx context.Context, course *models.Course) {
	tags := []string{AdminTag}
	if course.TeacherID != nil {
		tags = append(tags, TeacherTag(*course.TeacherID))
	}
	tags = append(tags, rosterTags(ctx, s.roster, s.logger, course.ID)...)
	invalidate(ctx, s.cache, s.logger, tags...)
}
