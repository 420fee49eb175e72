package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// JobDeleteUpload removes an uploaded object whose submission write failed.
const JobDeleteUpload = "delete_orphaned_upload"

const uploadWarning = "file upload failed; your text was submitted without the attachment"

type submissionWriter interface {
	UpsertScoped(ctx context.Context, w repository.SubmissionWrite) (*models.Submission, error)
	Upsert(ctx context.Context, w repository.SubmissionWrite) (*models.Submission, error)
	ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error)
}

type assignmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// SubmissionFallback performs the same logical write through the secondary endpoint.
type SubmissionFallback interface {
	Submit(ctx context.Context, bearerToken string, req dto.FallbackSubmitRequest) (*dto.FallbackSubmitResponse, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// SubmissionConfig tunes uploads and the fallback path.
type SubmissionConfig struct {
	MaxFileSize       int64
	ChunkThreshold    int64
	ChunkSize         int64
	AllowedExtensions []string
	FallbackEnabled   bool
}

// SubmissionServiceParams groups constructor dependencies.
type SubmissionServiceParams struct {
	Submissions  submissionWriter
	Assignments  assignmentFinder
	Courses      courseFinder
	Enrollments  enrollmentChecker
	Store        storage.Store
	Fallback     SubmissionFallback
	Compensation jobEnqueuer
	Cache        cacheInvalidator
	Metrics      *MetricsService
	Validator    *validator.Validate
	Logger       *zap.Logger
	Config       SubmissionConfig
}

// SubmissionService runs the submission pipeline:
// validate → upload (optional) → write → fallback (one hop) → invalidate.
type SubmissionService struct {
	repo         submissionWriter
	assignments  assignmentFinder
	courses      courseFinder
	enrollments  enrollmentChecker
	store        storage.Store
	fallback     SubmissionFallback
	compensation jobEnqueuer
	cache        cacheInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          SubmissionConfig
	now          func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5 * 1024 * 1024
	}
	return &SubmissionService{
		repo:         params.Submissions,
		assignments:  params.Assignments,
		courses:      params.Courses,
		enrollments:  params.Enrollments,
		store:        params.Store,
		fallback:     params.Fallback,
		compensation: params.Compensation,
		cache:        params.Cache,
		metrics:      params.Metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Submit hands in work for an assignment. Re-submitting replaces the previous row.
func (s *SubmissionService) Submit(ctx context.Context, in dto.SubmitAssignmentInput) (*dto.SubmissionResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission text or a file is required")
	}
	if in.AssignmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment_id is required")
	}
	if err := s.validateFile(in.File); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.FindByID(ctx, in.AssignmentID)
	if err != nil {
		return nil, lookupError(err, "assignment not found", "failed to load assignment")
	}
	if err := s.ensureEnrolled(ctx, in.StudentID, assignment.CourseID); err != nil {
		return nil, err
	}
	if err := s.ensureSubmittable(ctx, in.StudentID, assignment); err != nil {
		return nil, err
	}

	result := &dto.SubmissionResult{}
	var fileURL *string
	var uploadedKey string
	if in.File != nil {
		url, key, progress, err := s.upload(ctx, in.StudentID, in.AssignmentID, in.File)
		result.UploadProgress = progress
		switch {
		case err == nil:
			fileURL = &url
			uploadedKey = key
		case text == "":
			s.metrics.RecordSubmission(dto.SubmissionPathDirect, "upload_failed")
			return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "file upload failed")
		default:
			s.logger.Warn("submission upload failed, continuing with text only",
				zap.String("student_id", in.StudentID), zap.String("assignment_id", in.AssignmentID), zap.Error(err))
			result.Warnings = append(result.Warnings, uploadWarning)
		}
	}

	write := repository.SubmissionWrite{StudentID: in.StudentID, AssignmentID: in.AssignmentID, FileURL: fileURL}
	if text != "" {
		write.SubmissionText = stringPtr(in.Text)
	}

	sub, path, err := s.write(ctx, write, in.BearerToken)
	if err != nil {
		if uploadedKey != "" {
			s.compensate(ctx, uploadedKey)
		}
		s.metrics.RecordSubmission(path, "failed")
		return nil, err
	}
	s.metrics.RecordSubmission(path, "success")

	result.Submission = sub
	result.Path = path
	s.afterWrite(ctx, in.StudentID, assignment.CourseID)
	return result, nil
}

// SubmitPrivileged is the secondary endpoint's write. It skips the session role.
func (s *SubmissionService) SubmitPrivileged(ctx context.Context, studentID string, req dto.FallbackSubmitRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if strings.TrimSpace(deref(req.SubmissionText)) == "" && strings.TrimSpace(deref(req.FileURL)) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission text or a file is required")
	}
	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, lookupError(err, "assignment not found", "failed to load assignment")
	}
	if err := s.ensureEnrolled(ctx, studentID, assignment.CourseID); err != nil {
		return nil, err
	}
	if err := s.ensureSubmittable(ctx, studentID, assignment); err != nil {
		return nil, err
	}

	write := repository.SubmissionWrite{StudentID: studentID, AssignmentID: req.AssignmentID}
	if strings.TrimSpace(deref(req.SubmissionText)) != "" {
		write.SubmissionText = req.SubmissionText
	}
	if strings.TrimSpace(deref(req.FileURL)) != "" {
		write.FileURL = req.FileURL
	}
	sub, err := s.repo.Upsert(ctx, write)
	if err != nil {
		return nil, s.classifyWriteError(err)
	}
	s.afterWrite(ctx, studentID, assignment.CourseID)
	return sub, nil
}

// ListMine returns the student's submissions.
func (s *SubmissionService) ListMine(ctx context.Context, studentID string) ([]models.Submission, error) {
	subs, err := s.repo.ListByStudent(ctx, studentID, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

func (s *SubmissionService) validateFile(file *dto.FileUpload) error {
	if file == nil {
		return nil
	}
	if file.Size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	if s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}
	if len(s.cfg.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(file.Name))
	for _, allowed := range s.cfg.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %q is not allowed", ext))
}

func (s *SubmissionService) ensureEnrolled(ctx context.Context, studentID, courseID string) error {
	ok, err := s.enrollments.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
	}
	return nil
}

// ensureSubmittable rejects writes to graded or overdue assignments.
func (s *SubmissionService) ensureSubmittable(ctx context.Context, studentID string, assignment *models.Assignment) error {
	existing, err := s.repo.ListByStudent(ctx, studentID, []string{assignment.ID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing submission")
	}
	var current *models.Submission
	for i := range existing {
		if existing[i].AssignmentID == assignment.ID {
			current = &existing[i]
			break
		}
	}
	status, ok := AssignmentState(*assignment, current, s.now())
	if ok {
		return nil
	}
	switch status {
	case dto.AssignmentStatusGraded:
		return appErrors.Clone(appErrors.ErrAssignmentClosed, "assignment has already been graded")
	default:
		return appErrors.Clone(appErrors.ErrAssignmentClosed, "assignment is past its due date")
	}
}

// upload stores the file under a collision-free key. Files above the chunk
// threshold are streamed in chunks and report progress after each one.
func (s *SubmissionService) upload(ctx context.Context, studentID, assignmentID string, file *dto.FileUpload) (string, string, []int, error) {
	if s.store == nil {
		return "", "", nil, errors.New("object storage is not configured")
	}
	key := fmt.Sprintf("submissions/%s/%s/%d_%s", studentID, assignmentID, s.now().UnixNano(), storage.SanitizeName(file.Name))

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", "", nil, err
	}
	if exists {
		return "", "", nil, storage.ErrObjectExists
	}

	opts := storage.PutOptions{Size: file.Size, ContentType: file.ContentType}
	chunked := s.cfg.ChunkThreshold > 0 && file.Size > s.cfg.ChunkThreshold
	var progress []int
	if chunked {
		opts.ChunkSize = s.cfg.ChunkSize
		opts.Progress = func(percent int) { progress = append(progress, percent) }
	}

	url, err := s.store.Put(ctx, key, file.Body, opts)
	s.metrics.RecordUpload(chunked, err == nil)
	if err != nil {
		return "", "", progress, err
	}
	s.logger.Debug("submission file uploaded", zap.String("key", key), zap.Bool("chunked", chunked), zap.Int64("size", file.Size))
	return url, key, progress, nil
}

// write tries the scoped direct write, then one hop through the fallback
// endpoint when the database refuses the relation or permission.
func (s *SubmissionService) write(ctx context.Context, w repository.SubmissionWrite, bearerToken string) (*models.Submission, dto.SubmissionPath, error) {
	sub, err := s.repo.UpsertScoped(ctx, w)
	if err == nil {
		return sub, dto.SubmissionPathDirect, nil
	}

	kind := appErrors.KindOf(err)
	if kind != appErrors.KindRelationMissing && kind != appErrors.KindPermissionDenied {
		return nil, dto.SubmissionPathDirect, s.classifyWriteError(err)
	}
	if !s.cfg.FallbackEnabled || s.fallback == nil {
		return nil, dto.SubmissionPathDirect, appErrors.Wrap(err, appErrors.ErrSubmissionUnavailable.Code, appErrors.ErrSubmissionUnavailable.Status, appErrors.ErrSubmissionUnavailable.Message)
	}

	s.logger.Warn("direct submission write refused, using fallback endpoint",
		zap.String("kind", kind.String()), zap.String("assignment_id", w.AssignmentID), zap.Error(err))
	s.metrics.RecordFallback(kind.String())

	resp, fbErr := s.fallback.Submit(ctx, bearerToken, dto.FallbackSubmitRequest{
		AssignmentID:   w.AssignmentID,
		SubmissionText: w.SubmissionText,
		FileURL:        w.FileURL,
	})
	if fbErr != nil {
		msg := fmt.Sprintf("submission failed: %v; fallback failed: %v", err, fbErr)
		return nil, dto.SubmissionPathFallback, appErrors.Wrap(errors.Join(err, fbErr), appErrors.ErrFallbackFailed.Code, appErrors.ErrFallbackFailed.Status, msg)
	}
	if stored, ok := resp.Submission.Get(); ok {
		return &stored, dto.SubmissionPathFallback, nil
	}
	return &models.Submission{
		StudentID:      w.StudentID,
		AssignmentID:   w.AssignmentID,
		SubmissionText: w.SubmissionText,
		FileURL:        w.FileURL,
		SubmittedAt:    s.now().UTC(),
	}, dto.SubmissionPathFallback, nil
}

func (s *SubmissionService) classifyWriteError(err error) error {
	switch appErrors.KindOf(err) {
	case appErrors.KindForeignKeyViolation:
		return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "assignment or student no longer exists")
	case appErrors.KindPermissionDenied:
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "not allowed to submit this assignment")
	case appErrors.KindRelationMissing:
		return appErrors.Wrap(err, appErrors.ErrSubmissionUnavailable.Code, appErrors.ErrSubmissionUnavailable.Status, appErrors.ErrSubmissionUnavailable.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
}

// compensate schedules removal of an upload that no submission references.
func (s *SubmissionService) compensate(ctx context.Context, key string) {
	compensateUpload(ctx, s.compensation, s.store, s.metrics, s.logger, key)
}

// compensateUpload queues deletion of an object whose row write failed. A
// full or missing queue falls back to an inline delete.
func compensateUpload(ctx context.Context, queue jobEnqueuer, store storage.Store, metrics *MetricsService, logger *zap.Logger, key string) {
	job := jobs.Job{Type: JobDeleteUpload, Payload: map[string]string{"key": key}}
	if queue != nil {
		err := queue.Enqueue(job)
		if err == nil {
			return
		}
		logger.Warn("failed to enqueue upload cleanup, deleting inline", zap.String("key", key), zap.Error(err))
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Error("orphaned upload left behind", zap.String("key", key), zap.Error(err))
		metrics.RecordCompensation(false)
		return
	}
	metrics.RecordCompensation(true)
}

// afterWrite drops only the views showing this submission.
func (s *SubmissionService) afterWrite(ctx context.Context, studentID, courseID string) {
	tags := []string{StudentTag(studentID)}
	if s.courses != nil {
		if course, err := s.courses.FindByID(ctx, courseID); err == nil && course.TeacherID != nil {
			tags = append(tags, TeacherTag(*course.TeacherID))
		}
	}
	invalidate(ctx, s.cache, s.logger, tags...)
}

// NewUploadCompensator returns the queue handler that deletes orphaned uploads.
func NewUploadCompensator(store storage.Store, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != JobDeleteUpload {
			return nil
		}
		key := job.Payload["key"]
		if key == "" {
			return nil
		}
		if err := store.Delete(ctx, key); err != nil {
			metrics.RecordCompensation(false)
			return fmt.Errorf("delete %s: %w", key, err)
		}
		metrics.RecordCompensation(true)
		logger.Info("orphaned upload removed", zap.String("key", key), zap.Int("attempt", job.Attempt))
		return nil
	}
}
