package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

var courseStatsColumns = []string{"id", "title", "description", "schedule_time", "live_class_url", "teacher_id", "max_students", "status", "created_at", "updated_at", "teacher", "enrollment_count"}

func TestCourseListComputesEnrollmentCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseStatsColumns).
		AddRow("c1", "Algebra", "", now, nil, "t1", 30, "active", now, now, []byte(`{"id":"t1","full_name":"Tom","email":"t@x"}`), 30).
		AddRow("c2", "Poetry", "", nil, nil, nil, 10, "inactive", now, now, nil, 0)
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollment_count FROM courses c WHERE c.status = $1 ORDER BY c.created_at DESC")).
		WithArgs(models.CourseStatusActive).
		WillReturnRows(rows)

	courses, err := repo.List(context.Background(), models.CourseFilter{Status: models.CourseStatusActive})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, 30, courses[0].EnrollmentCount)
	teacher, ok := courses[0].Teacher.Get()
	require.True(t, ok)
	assert.Equal(t, "Tom", teacher.FullName)
	assert.False(t, courses[1].Teacher.Present())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseListEmptyIDsShortCircuits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	courses, err := repo.List(context.Background(), models.CourseFilter{IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, courses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUpdateRoundTrip(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	schedule := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	url := "https://meet.example.com/algebra"
	teacher := "t1"
	course := &models.Course{ID: "c1", Title: "Algebra II", Description: "Linear maps", ScheduleTime: &schedule, LiveClassURL: &url, TeacherID: &teacher, MaxStudents: 25, Status: models.CourseStatusActive}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET title = ?")).
		WithArgs("Algebra II", "Linear maps", schedule, url, teacher, 25, models.CourseStatusActive, sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(courseStatsColumns).AddRow("c1", "Algebra II", "Linear maps", schedule, url, teacher, 25, "active", now, now, nil, 3))

	require.NoError(t, repo.Update(context.Background(), course))
	got, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, course.Title, got.Title)
	assert.Equal(t, course.Description, got.Description)
	assert.Equal(t, *course.ScheduleTime, *got.ScheduleTime)
	assert.Equal(t, *course.LiveClassURL, *got.LiveClassURL)
	assert.Equal(t, *course.TeacherID, *got.TeacherID)
	assert.Equal(t, course.MaxStudents, got.MaxStudents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "nope")
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))
}
