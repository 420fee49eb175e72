package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memoryProfileRepo struct {
	profiles map[string]*models.Profile
	filter   models.ProfileFilter
}

func (m *memoryProfileRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		return p, nil
	}
	return nil, errNoRows()
}

func (m *memoryProfileRepo) List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error) {
	m.filter = filter
	return []models.Profile{}, 42, nil
}

func (m *memoryProfileRepo) SetApproved(ctx context.Context, id string, approved bool) error {
	p, ok := m.profiles[id]
	if !ok {
		return appErrors.NewDataError(appErrors.KindNotFound, "approve profile", errNoRows())
	}
	p.Approved = approved
	return nil
}

func (m *memoryProfileRepo) DeletePendingTeacher(ctx context.Context, id string) error {
	p, ok := m.profiles[id]
	if !ok || p.Approved {
		return appErrors.NewDataError(appErrors.KindNotFound, "delete pending teacher", errNoRows())
	}
	delete(m.profiles, id)
	return nil
}

func TestProfileTeacherApproval(t *testing.T) {
	repo := &memoryProfileRepo{profiles: map[string]*models.Profile{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"t2": {ID: "t2", Role: models.RoleTeacher},
	}}
	cache := &recordingInvalidator{}
	svc := NewProfileService(repo, cache, nil, nil)

	p, err := svc.ApproveTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, p.Approved)
	assert.Equal(t, []string{AdminTag}, cache.tags)

	_, err = svc.ApproveTeacher(context.Background(), "nope")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = svc.RejectTeacher(context.Background(), "t2", false)
	assert.True(t, errors.Is(err, appErrors.ErrConfirmationRequired))
	assert.Len(t, repo.profiles, 2)

	require.NoError(t, svc.RejectTeacher(context.Background(), "t2", true))
	assert.Len(t, repo.profiles, 1)

	err = svc.RejectTeacher(context.Background(), "t1", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProfileListPagination(t *testing.T) {
	repo := &memoryProfileRepo{profiles: map[string]*models.Profile{}}
	svc := NewProfileService(repo, nil, nil, nil)

	_, page, err := svc.ListTeachers(context.Background(), dto.ProfileQuery{Page: 2, PageSize: 500}, true)
	require.NoError(t, err)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 20, TotalCount: 42}, page)
	require.NotNil(t, repo.filter.Approved)
	assert.False(t, *repo.filter.Approved)

	_, page, err = svc.ListStudents(context.Background(), dto.ProfileQuery{Search: "ann"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, models.RoleStudent, repo.filter.Role)
	assert.Nil(t, repo.filter.Approved)
}
