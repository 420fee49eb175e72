package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const approvedTeacherID = "9e8d7c6b-5a4f-4e3d-9c2b-1a0f9e8d7c6b"

type memoryCourseRepo struct {
	courses map[string]*models.CourseWithStats
	filter  models.CourseFilter
	deleted []string
}

func (m *memoryCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithStats, error) {
	m.filter = filter
	out := []models.CourseWithStats{}
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memoryCourseRepo) FindByID(ctx context.Context, id string) (*models.CourseWithStats, error) {
	if c, ok := m.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, errNoRows()
}

func (m *memoryCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.courses[course.ID] = &models.CourseWithStats{Course: *course}
	return nil
}

func (m *memoryCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = &models.CourseWithStats{Course: *course}
	return nil
}

func (m *memoryCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type stubProfiles map[string]*models.Profile

func (s stubProfiles) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, errNoRows()
}

func newCourseFixture() (*CourseService, *memoryCourseRepo, *recordingInvalidator) {
	repo := &memoryCourseRepo{courses: map[string]*models.CourseWithStats{
		testCourseID: courseOwnedBy(testCourseID, testTeacherID, models.CourseStatusActive),
	}}
	profiles := stubProfiles{
		approvedTeacherID:                      {ID: approvedTeacherID, Role: models.RoleTeacher, Approved: true},
		"3c2b1a0f-9e8d-4c7b-8a6f-5e4d3c2b1a0f": {ID: "3c2b1a0f-9e8d-4c7b-8a6f-5e4d3c2b1a0f", Role: models.RoleTeacher, Approved: false},
	}
	cache := &recordingInvalidator{}
	roster := stubRoster{{ID: rosterStudentID, FullName: "Sam"}}
	return NewCourseService(repo, profiles, roster, cache, nil, nil), repo, cache
}

func TestCourseListScopesByRole(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	_, err := svc.List(context.Background(), Actor{ID: testStudentID, Role: models.RoleStudent}, models.CourseFilter{Status: models.CourseStatusInactive})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusActive, repo.filter.Status)

	_, err = svc.List(context.Background(), Actor{ID: testTeacherID, Role: models.RoleTeacher}, models.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, testTeacherID, repo.filter.TeacherID)

	_, err = svc.List(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin}, models.CourseFilter{Search: "math"})
	require.NoError(t, err)
	assert.Empty(t, repo.filter.TeacherID)
	assert.Equal(t, "math", repo.filter.Search)
}

func TestCourseCreate(t *testing.T) {
	svc, _, cache := newCourseFixture()
	teacher := approvedTeacherID
	blank := "  "

	course, err := svc.Create(context.Background(), dto.CreateCourseRequest{Title: " Algebra ", TeacherID: &teacher, MaxStudents: 25, LiveClassURL: &blank})
	require.NoError(t, err)
	assert.Equal(t, "Algebra", course.Title)
	assert.Equal(t, models.CourseStatusActive, course.Status)
	assert.Nil(t, course.LiveClassURL)
	assert.ElementsMatch(t, []string{AdminTag, TeacherTag(approvedTeacherID)}, cache.tags)
}

func TestCourseCreateRejectsUnapprovedTeacher(t *testing.T) {
	svc, repo, _ := newCourseFixture()
	pending := "3c2b1a0f-9e8d-4c7b-8a6f-5e4d3c2b1a0f"

	_, err := svc.Create(context.Background(), dto.CreateCourseRequest{Title: "Algebra", TeacherID: &pending})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, repo.courses, 1)

	_, err = svc.Create(context.Background(), dto.CreateCourseRequest{Title: ""})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseDeleteRequiresConfirmation(t *testing.T) {
	svc, repo, cache := newCourseFixture()

	err := svc.Delete(context.Background(), testCourseID, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionRequired, appErrors.FromError(err).Status)
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Delete(context.Background(), testCourseID, true))
	assert.Equal(t, []string{testCourseID}, repo.deleted)
	assert.ElementsMatch(t, []string{AdminTag, TeacherTag(testTeacherID), StudentTag(rosterStudentID)}, cache.tags)

	err = svc.Delete(context.Background(), testCourseID, true)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestCourseUpdateInvalidatesEnrolledStudents(t *testing.T) {
	svc, _, cache := newCourseFixture()
	teacher := approvedTeacherID

	course, err := svc.Update(context.Background(), testCourseID, dto.UpdateCourseRequest{Title: "Renamed", TeacherID: &teacher})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", course.Title)
	assert.ElementsMatch(t, []string{
		AdminTag,
		TeacherTag(approvedTeacherID),
		TeacherTag(testTeacherID),
		StudentTag(rosterStudentID),
	}, cache.tags)
}
