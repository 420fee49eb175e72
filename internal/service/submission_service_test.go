package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

const (
	testStudentID    = "stu-1"
	testTeacherID    = "tea-1"
	testCourseID     = "course-1"
	testAssignmentID = "7b1f5a2e-9c1d-4c55-8f0a-3f1c2d4e5b6a"
)

type fakeSubmissionRepo struct {
	scopedErr    error
	upsertErr    error
	scopedWrites []repository.SubmissionWrite
	plainWrites  []repository.SubmissionWrite
	listed       []models.Submission
	lookups      int
}

func (f *fakeSubmissionRepo) UpsertScoped(ctx context.Context, w repository.SubmissionWrite) (*models.Submission, error) {
	f.scopedWrites = append(f.scopedWrites, w)
	if f.scopedErr != nil {
		return nil, f.scopedErr
	}
	return &models.Submission{ID: "sub-1", StudentID: w.StudentID, AssignmentID: w.AssignmentID, SubmissionText: w.SubmissionText, FileURL: w.FileURL}, nil
}

func (f *fakeSubmissionRepo) Upsert(ctx context.Context, w repository.SubmissionWrite) (*models.Submission, error) {
	f.plainWrites = append(f.plainWrites, w)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &models.Submission{ID: "sub-2", StudentID: w.StudentID, AssignmentID: w.AssignmentID, SubmissionText: w.SubmissionText, FileURL: w.FileURL}, nil
}

func (f *fakeSubmissionRepo) ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error) {
	f.lookups++
	return f.listed, nil
}

type fakeAssignmentFinder struct {
	calls int
	due   time.Time
}

func (f *fakeAssignmentFinder) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	f.calls++
	if id != testAssignmentID {
		return nil, errNoRows()
	}
	due := f.due
	if due.IsZero() {
		due = time.Now().Add(7 * 24 * time.Hour)
	}
	return &models.Assignment{ID: id, CourseID: testCourseID, Title: "Essay", MaxPoints: 100, DueDate: due}, nil
}

type fakeEnrollmentChecker struct {
	enrolled bool
}

func (f *fakeEnrollmentChecker) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return f.enrolled, nil
}

type fakeFallback struct {
	err      error
	resp     *dto.FallbackSubmitResponse
	tokens   []string
	requests []dto.FallbackSubmitRequest
}

func (f *fakeFallback) Submit(ctx context.Context, bearerToken string, req dto.FallbackSubmitRequest) (*dto.FallbackSubmitResponse, error) {
	f.tokens = append(f.tokens, bearerToken)
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &dto.FallbackSubmitResponse{Message: "submitted"}, nil
}

type submissionFixture struct {
	svc        *SubmissionService
	repo       *fakeSubmissionRepo
	assignment *fakeAssignmentFinder
	store      *memoryStore
	fallback   *fakeFallback
	queue      *recordingQueue
	cache      *recordingInvalidator
}

func newSubmissionFixture(cfg SubmissionConfig) *submissionFixture {
	f := &submissionFixture{
		repo:       &fakeSubmissionRepo{},
		assignment: &fakeAssignmentFinder{},
		store:      newMemoryStore(),
		fallback:   &fakeFallback{},
		queue:      &recordingQueue{},
		cache:      &recordingInvalidator{},
	}
	f.svc = NewSubmissionService(SubmissionServiceParams{
		Submissions:  f.repo,
		Assignments:  f.assignment,
		Courses:      &stubCourses{courses: map[string]*models.CourseWithStats{testCourseID: courseOwnedBy(testCourseID, testTeacherID, models.CourseStatusActive)}},
		Enrollments:  &fakeEnrollmentChecker{enrolled: true},
		Store:        f.store,
		Fallback:     f.fallback,
		Compensation: f.queue,
		Cache:        f.cache,
		Config:       cfg,
	})
	return f
}

func textInput(text string) dto.SubmitAssignmentInput {
	return dto.SubmitAssignmentInput{StudentID: testStudentID, AssignmentID: testAssignmentID, Text: text, BearerToken: "token-abc"}
}

func fileUpload(name, body string) *dto.FileUpload {
	return &dto.FileUpload{Name: name, Size: int64(len(body)), ContentType: "application/pdf", Body: strings.NewReader(body)}
}

func relationMissing() error {
	return appErrors.NewDataError(appErrors.KindRelationMissing, "upsert submission", errors.New(`relation "assignment_submissions" does not exist`))
}

func TestSubmitRequiresTextOrFileBeforeAnyIO(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: true})

	_, err := f.svc.Submit(context.Background(), textInput("   "))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, f.assignment.calls)
	assert.Empty(t, f.repo.scopedWrites)
	assert.Empty(t, f.store.keys())
}

func TestSubmitRejectsInvalidFiles(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{MaxFileSize: 8, AllowedExtensions: []string{".pdf"}})

	in := textInput("")
	in.File = fileUpload("essay.exe", "abc")
	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")

	in.File = fileUpload("essay.pdf", "way too large")
	_, err = f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, f.assignment.calls)
}

func TestSubmitRequiresEnrollment(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.svc.enrollments = &fakeEnrollmentChecker{enrolled: false}

	_, err := f.svc.Submit(context.Background(), textInput("answer"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Empty(t, f.repo.scopedWrites)
}

func TestSubmitUnknownAssignment(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	in := textInput("answer")
	in.AssignmentID = "missing"

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestSubmitDirectWithChunkedUpload(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{ChunkThreshold: 10, ChunkSize: 10, AllowedExtensions: []string{".pdf"}})
	in := textInput("see attached")
	in.File = fileUpload("My Essay.pdf", strings.Repeat("x", 25))

	result, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, dto.SubmissionPathDirect, result.Path)
	assert.Equal(t, []int{40, 80, 100}, result.UploadProgress)
	assert.Empty(t, result.Warnings)

	keys := f.store.keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "submissions/"+testStudentID+"/"+testAssignmentID+"/"))
	assert.True(t, strings.HasSuffix(keys[0], "_My_Essay.pdf"))

	require.Len(t, f.repo.scopedWrites, 1)
	require.NotNil(t, f.repo.scopedWrites[0].FileURL)
	assert.Equal(t, "https://files.example.com/"+keys[0], *f.repo.scopedWrites[0].FileURL)
	assert.Equal(t, "see attached", *f.repo.scopedWrites[0].SubmissionText)
	assert.ElementsMatch(t, []string{StudentTag(testStudentID), TeacherTag(testTeacherID)}, f.cache.tags)
	assert.Empty(t, f.fallback.requests)
}

func TestSubmitSmallUploadIsNotChunked(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{ChunkThreshold: 100, ChunkSize: 10})
	in := textInput("")
	in.File = fileUpload("notes.txt", "short")

	result, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, result.UploadProgress)
	assert.Nil(t, f.repo.scopedWrites[0].SubmissionText)
}

func TestSubmitUploadCollisionIsAnUploadFailure(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.store.existsFn = func(string) bool { return true }
	in := textInput("")
	in.File = fileUpload("notes.txt", "content")

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUploadFailed))
	assert.Empty(t, f.repo.scopedWrites)
}

func TestSubmitUploadFailureKeepsText(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.store.putErr = errors.New("bucket unavailable")
	in := textInput("my answer")
	in.File = fileUpload("notes.txt", "content")

	result, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "without the attachment")
	require.Len(t, f.repo.scopedWrites, 1)
	assert.Nil(t, f.repo.scopedWrites[0].FileURL)
	assert.Equal(t, "my answer", *result.Submission.SubmissionText)
}

func TestSubmitUploadFailureWithoutTextFails(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.store.putErr = errors.New("bucket unavailable")
	in := textInput("")
	in.File = fileUpload("notes.txt", "content")

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUploadFailed))
	assert.Empty(t, f.repo.scopedWrites)
}

func TestSubmitFallsBackOnRefusedWrite(t *testing.T) {
	cases := map[string]error{
		"relation missing":  relationMissing(),
		"permission denied": appErrors.NewDataError(appErrors.KindPermissionDenied, "upsert submission", errors.New("permission denied for table assignment_submissions")),
	}
	for name, writeErr := range cases {
		t.Run(name, func(t *testing.T) {
			f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: true})
			f.repo.scopedErr = writeErr
			stored := models.Submission{ID: "remote-1", StudentID: testStudentID, AssignmentID: testAssignmentID}
			f.fallback.resp = &dto.FallbackSubmitResponse{Message: "ok", Submission: models.Some(stored)}

			result, err := f.svc.Submit(context.Background(), textInput("answer"))
			require.NoError(t, err)
			assert.Equal(t, dto.SubmissionPathFallback, result.Path)
			assert.Equal(t, "remote-1", result.Submission.ID)
			require.Len(t, f.fallback.requests, 1)
			assert.Equal(t, []string{"token-abc"}, f.fallback.tokens)
			assert.Equal(t, testAssignmentID, f.fallback.requests[0].AssignmentID)
			assert.Equal(t, "answer", *f.fallback.requests[0].SubmissionText)
			assert.Contains(t, f.cache.tags, StudentTag(testStudentID))
		})
	}
}

func TestSubmitFallbackWithoutStoredRow(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: true})
	f.repo.scopedErr = relationMissing()

	result, err := f.svc.Submit(context.Background(), textInput("answer"))
	require.NoError(t, err)
	assert.Equal(t, testAssignmentID, result.Submission.AssignmentID)
	assert.False(t, result.Submission.SubmittedAt.IsZero())
}

func TestSubmitFallbackDisabled(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: false})
	f.repo.scopedErr = relationMissing()

	_, err := f.svc.Submit(context.Background(), textInput("answer"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSubmissionUnavailable))
	assert.Empty(t, f.fallback.requests)
}

func TestSubmitForeignKeyViolationIsNotRetried(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: true})
	f.repo.scopedErr = appErrors.NewDataError(appErrors.KindForeignKeyViolation, "upsert submission", errors.New("violates foreign key constraint"))

	_, err := f.svc.Submit(context.Background(), textInput("answer"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "assignment or student no longer exists", appErr.Message)
	assert.Empty(t, f.fallback.requests)
	assert.Empty(t, f.cache.tags)
}

func TestSubmitFallbackFailureReportsBothAndCompensates(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{FallbackEnabled: true})
	f.repo.scopedErr = relationMissing()
	f.fallback.err = errors.New("fallback returned 500: boom")
	in := textInput("answer")
	in.File = fileUpload("notes.txt", "content")

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFallbackFailed))
	msg := appErrors.FromError(err).Message
	assert.Contains(t, msg, "does not exist")
	assert.Contains(t, msg, "boom")

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, JobDeleteUpload, job.Type)
	assert.Equal(t, f.store.keys()[0], job.Payload["key"])
}

func TestSubmitCompensatesInlineWhenQueueIsFull(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.queue.err = jobs.ErrQueueFull
	f.repo.scopedErr = appErrors.NewDataError(appErrors.KindUnknown, "upsert submission", errors.New("connection reset"))
	in := textInput("")
	in.File = fileUpload("notes.txt", "content")

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
	assert.Len(t, f.store.deleted, 1)
	assert.Empty(t, f.store.keys())
}

func TestSubmitPrivilegedUsesUnscopedWrite(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	text := "answer"

	sub, err := f.svc.SubmitPrivileged(context.Background(), testStudentID, dto.FallbackSubmitRequest{AssignmentID: testAssignmentID, SubmissionText: &text})
	require.NoError(t, err)
	assert.Equal(t, "sub-2", sub.ID)
	assert.Len(t, f.repo.plainWrites, 1)
	assert.Empty(t, f.repo.scopedWrites)

	_, err = f.svc.SubmitPrivileged(context.Background(), testStudentID, dto.FallbackSubmitRequest{AssignmentID: testAssignmentID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.SubmitPrivileged(context.Background(), testStudentID, dto.FallbackSubmitRequest{AssignmentID: "not-a-uuid", SubmissionText: &text})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUploadCompensatorDeletesKey(t *testing.T) {
	store := newMemoryStore()
	_, err := store.Put(context.Background(), "submissions/a/b/c.txt", strings.NewReader("x"), storageOptions())
	require.NoError(t, err)

	handler := NewUploadCompensator(store, nil, nil)
	require.NoError(t, handler(context.Background(), jobs.Job{Type: JobDeleteUpload, Payload: map[string]string{"key": "submissions/a/b/c.txt"}}))
	assert.Empty(t, store.keys())

	require.NoError(t, handler(context.Background(), jobs.Job{Type: "other"}))
	assert.Len(t, store.deleted, 1)
}

func TestSubmitRejectsOverdueAssignmentBeforeUpload(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	f.assignment.due = time.Now().Add(-time.Hour)
	in := textInput("late answer")
	in.File = fileUpload("late.pdf", "pdf")

	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAssignmentClosed))
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
	assert.Empty(t, f.store.keys())
	assert.Empty(t, f.repo.scopedWrites)
	assert.Empty(t, f.fallback.requests)

	text := "late answer"
	_, err = f.svc.SubmitPrivileged(context.Background(), testStudentID, dto.FallbackSubmitRequest{AssignmentID: testAssignmentID, SubmissionText: &text})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAssignmentClosed))
	assert.Empty(t, f.repo.plainWrites)
}

func TestSubmitRejectsGradedAssignment(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})
	grade := 88.0
	f.repo.listed = []models.Submission{{ID: "sub-1", StudentID: testStudentID, AssignmentID: testAssignmentID, Grade: &grade}}

	_, err := f.svc.Submit(context.Background(), textInput("second try"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAssignmentClosed))
	assert.Contains(t, err.Error(), "graded")
	assert.Empty(t, f.repo.scopedWrites)

	text := "second try"
	_, err = f.svc.SubmitPrivileged(context.Background(), testStudentID, dto.FallbackSubmitRequest{AssignmentID: testAssignmentID, SubmissionText: &text})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAssignmentClosed))
	assert.Empty(t, f.repo.plainWrites)
}

func TestResubmissionBeforeDueDateReusesUpsert(t *testing.T) {
	f := newSubmissionFixture(SubmissionConfig{})

	first, err := f.svc.Submit(context.Background(), textInput("draft"))
	require.NoError(t, err)
	f.repo.listed = []models.Submission{*first.Submission}

	second, err := f.svc.Submit(context.Background(), textInput("final"))
	require.NoError(t, err)

	require.Len(t, f.repo.scopedWrites, 2)
	for _, w := range f.repo.scopedWrites {
		assert.Equal(t, testStudentID, w.StudentID)
		assert.Equal(t, testAssignmentID, w.AssignmentID)
	}
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, "final", *second.Submission.SubmissionText)
	assert.Equal(t, 2, f.repo.lookups)
}
