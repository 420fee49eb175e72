package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
	SetApproved(ctx context.Context, id string, approved bool) error
	DeletePendingTeacher(ctx context.Context, id string) error
}

// ProfileService backs the admin teacher and student panels.
type ProfileService struct {
	repo    profileRepository
	cache   cacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// ListTeachers returns teachers; pendingOnly narrows to unapproved accounts.
func (s *ProfileService) ListTeachers(ctx context.Context, query dto.ProfileQuery, pendingOnly bool) ([]models.Profile, *models.Pagination, error) {
	filter := models.ProfileFilter{Role: models.RoleTeacher, Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if pendingOnly {
		approved := false
		filter.Approved = &approved
	}
	return s.list(ctx, filter)
}

// ListStudents returns student profiles.
func (s *ProfileService) ListStudents(ctx context.Context, query dto.ProfileQuery) ([]models.Profile, *models.Pagination, error) {
	return s.list(ctx, models.ProfileFilter{Role: models.RoleStudent, Search: query.Search, Page: query.Page, PageSize: query.PageSize})
}

// ApproveTeacher lets a registered teacher sign in.
func (s *ProfileService) ApproveTeacher(ctx context.Context, id string) (*models.Profile, error) {
	if err := s.repo.SetApproved(ctx, id, true); err != nil {
		if appErrors.IsKind(err, appErrors.KindNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve teacher")
	}
	s.metrics.RecordReview("teacher", "approved")
	invalidate(ctx, s.cache, s.logger, AdminTag)
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "teacher not found", "failed to load teacher")
	}
	return profile, nil
}

// RejectTeacher deletes an unapproved teacher account. confirm must be set.
func (s *ProfileService) RejectTeacher(ctx context.Context, id string, confirm bool) error {
	if !confirm {
		return appErrors.Clone(appErrors.ErrConfirmationRequired, "rejecting a teacher deletes the account; pass confirm=true")
	}
	if err := s.repo.DeletePendingTeacher(ctx, id); err != nil {
		if appErrors.IsKind(err, appErrors.KindNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "pending teacher not found")
		}
		return writeError(err, "failed to reject teacher")
	}
	s.metrics.RecordReview("teacher", "rejected")
	s.logger.Info("pending teacher rejected", zap.String("profile_id", id))
	invalidate(ctx, s.cache, s.logger, AdminTag)
	return nil
}

func (s *ProfileService) list(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, *models.Pagination, error) {
	profiles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
