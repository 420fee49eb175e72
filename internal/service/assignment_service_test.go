package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/jobs"
)

type memoryAssignmentRepo struct {
	items map[string]*models.Assignment
}

func (m *memoryAssignmentRepo) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error) {
	out := []models.Assignment{}
	for _, a := range m.items {
		if containsString(courseIDs, a.CourseID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memoryAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.items[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, errNoRows()
}

func (m *memoryAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	a.ID = "a-new"
	m.items[a.ID] = a
	return nil
}

func (m *memoryAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	m.items[a.ID] = a
	return nil
}

func (m *memoryAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type fakeGradingRepo struct {
	subs   map[string]*models.SubmissionDetail
	graded []float64
	urls   []*string
	err    error
}

func (f *fakeGradingRepo) FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, errNoRows()
}

func (f *fakeGradingRepo) ListByAssignments(ctx context.Context, assignmentIDs []string, ungradedOnly bool) ([]models.SubmissionDetail, error) {
	out := []models.SubmissionDetail{}
	for _, s := range f.subs {
		if ungradedOnly && s.Grade != nil {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeGradingRepo) Grade(ctx context.Context, id string, grade float64, feedback, feedbackFileURL *string) (*models.Submission, error) {
	f.urls = append(f.urls, feedbackFileURL)
	if f.err != nil {
		return nil, f.err
	}
	f.graded = append(f.graded, grade)
	sub := f.subs[id].Submission
	sub.Grade = &grade
	sub.Feedback = feedback
	sub.FeedbackFileURL = feedbackFileURL
	return &sub, nil
}

func newAssignmentFixture() (*AssignmentService, *fakeGradingRepo, *memoryStore, *recordingInvalidator) {
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	repo := &memoryAssignmentRepo{items: map[string]*models.Assignment{
		"a1": {ID: "a1", CourseID: testCourseID, Title: "Essay", MaxPoints: 20, DueDate: due},
		"a2": {ID: "a2", CourseID: testCourseID, Title: "Quiz", MaxPoints: 10, DueDate: due.Add(24 * time.Hour)},
	}}
	grade := 15.0
	grading := &fakeGradingRepo{subs: map[string]*models.SubmissionDetail{
		"s1": {Submission: models.Submission{ID: "s1", StudentID: rosterStudentID, AssignmentID: "a1", Grade: &grade}, CourseID: testCourseID, MaxPoints: 20},
		"s2": {Submission: models.Submission{ID: "s2", StudentID: rosterStudentID, AssignmentID: "a2"}, CourseID: testCourseID, MaxPoints: 10},
	}}
	store := newMemoryStore()
	cache := &recordingInvalidator{}
	courses := &stubCourses{courses: map[string]*models.CourseWithStats{testCourseID: courseOwnedBy(testCourseID, testTeacherID, models.CourseStatusActive)}}
	roster := stubRoster{{ID: rosterStudentID, FullName: "Sam"}, {ID: "other", FullName: "Lee"}}
	return NewAssignmentService(repo, grading, courses, roster, store, nil, cache, nil, nil), grading, store, cache
}

func TestAssignmentGrade(t *testing.T) {
	svc, grading, store, cache := newAssignmentFixture()
	teacher := Actor{ID: testTeacherID, Role: models.RoleTeacher}
	feedback := "  nice work "

	sub, err := svc.Grade(context.Background(), teacher, "s2", dto.GradeSubmissionRequest{Grade: 9, Feedback: &feedback}, fileUpload("notes.pdf", "feedback"))
	require.NoError(t, err)
	assert.Equal(t, 9.0, *sub.Grade)
	assert.Equal(t, "nice work", *sub.Feedback)
	require.NotNil(t, sub.FeedbackFileURL)
	keys := store.keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "feedback/s2/"))
	assert.ElementsMatch(t, []string{StudentTag(rosterStudentID), TeacherTag(testTeacherID)}, cache.tags)
	assert.Equal(t, []float64{9}, grading.graded)
}

func TestAssignmentGradeFailureQueuesFeedbackCleanup(t *testing.T) {
	svc, grading, store, cache := newAssignmentFixture()
	queue := &recordingQueue{}
	svc.compensation = queue
	grading.err = appErrors.NewDataError(appErrors.KindUnknown, "grade submission", errors.New("connection reset"))
	teacher := Actor{ID: testTeacherID, Role: models.RoleTeacher}

	_, err := svc.Grade(context.Background(), teacher, "s2", dto.GradeSubmissionRequest{Grade: 7}, fileUpload("notes.pdf", "feedback"))
	require.Error(t, err)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobDeleteUpload, queue.jobs[0].Type)
	assert.Equal(t, store.keys()[0], queue.jobs[0].Payload["key"])
	assert.Empty(t, cache.tags)

	queue.err = jobs.ErrQueueFull
	_, err = svc.Grade(context.Background(), teacher, "s2", dto.GradeSubmissionRequest{Grade: 7}, fileUpload("notes.pdf", "feedback"))
	require.Error(t, err)
	assert.Len(t, store.deleted, 1)
}

func TestAssignmentGradeBounds(t *testing.T) {
	svc, grading, _, _ := newAssignmentFixture()
	teacher := Actor{ID: testTeacherID, Role: models.RoleTeacher}

	_, err := svc.Grade(context.Background(), teacher, "s2", dto.GradeSubmissionRequest{Grade: 11}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Grade(context.Background(), teacher, "s2", dto.GradeSubmissionRequest{Grade: -1}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Grade(context.Background(), Actor{ID: "intruder", Role: models.RoleTeacher}, "s2", dto.GradeSubmissionRequest{Grade: 5}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Grade(context.Background(), teacher, "missing", dto.GradeSubmissionRequest{Grade: 5}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, grading.graded)
}

func TestAssignmentSubmissionsUngradedOnly(t *testing.T) {
	svc, _, _, _ := newAssignmentFixture()
	teacher := Actor{ID: testTeacherID, Role: models.RoleTeacher}

	subs, err := svc.Submissions(context.Background(), teacher, "a2", true)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s2", subs[0].ID)
}

func TestAssignmentGradebookCSV(t *testing.T) {
	svc, _, _, _ := newAssignmentFixture()

	body, filename, err := svc.Gradebook(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, testCourseID, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "gradebook_Course_course-1.csv", filename)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Essay (/20),Quiz (/10),Average %", lines[0])
	assert.Equal(t, "Sam,15,submitted,75.0", lines[1])
	assert.Equal(t, "Lee,-,-,-", lines[2])
}

func TestAssignmentCreateInvalidatesRoster(t *testing.T) {
	svc, _, _, cache := newAssignmentFixture()
	svc.courses = &stubCourses{courses: map[string]*models.CourseWithStats{enrollCourseID: courseOwnedBy(enrollCourseID, testTeacherID, models.CourseStatusActive)}}

	a, err := svc.Create(context.Background(), Actor{ID: testTeacherID, Role: models.RoleTeacher}, dto.CreateAssignmentRequest{
		CourseID: enrollCourseID, Title: "Project", DueDate: time.Now().Add(time.Hour), MaxPoints: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "a-new", a.ID)
	assert.Contains(t, cache.tags, StudentTag("other"))

	_, err = svc.Create(context.Background(), Actor{ID: testTeacherID, Role: models.RoleTeacher}, dto.CreateAssignmentRequest{
		CourseID: enrollCourseID, Title: "Project", DueDate: time.Now(), MaxPoints: 0,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
