package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the actor may act on any record.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// ensureCourseOwner allows admins and the course's assigned teacher.
func ensureCourseOwner(actor Actor, course *models.Course) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == models.RoleTeacher && course.TeacherID != nil && *course.TeacherID == actor.ID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to you")
}

func lookupError(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}

func writeError(err error, internalMsg string) error {
	switch appErrors.KindOf(err) {
	case appErrors.KindNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	case appErrors.KindForeignKeyViolation:
		return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, "referenced record does not exist")
	case appErrors.KindUniqueViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "record already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internalMsg)
}

func stringPtr(v string) *string {
	return &v
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// invalidate drops stale views; a failure only costs a stale read until TTL expiry.
func invalidate(ctx context.Context, inv cacheInvalidator, logger *zap.Logger, tags ...string) {
	if inv == nil || len(tags) == 0 {
		return
	}
	if err := inv.Invalidate(ctx, tags...); err != nil {
		logger.Warn("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

// rosterTags returns the student tags of everyone enrolled in the course.
// A roster failure is logged and yields no tags.
func rosterTags(ctx context.Context, roster rosterLookup, logger *zap.Logger, courseID string) []string {
	if roster == nil {
		return nil
	}
	students, err := roster.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		logger.Warn("failed to load roster for invalidation", zap.String("course_id", courseID), zap.Error(err))
		return nil
	}
	tags := make([]string, 0, len(students))
	for _, st := range students {
		tags = append(tags, StudentTag(st.ID))
	}
	return tags
}
