package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

var submissionRowColumns = []string{"id", "student_id", "assignment_id", "submission_text", "file_url", "submitted_at", "grade", "feedback", "feedback_file_url", "graded_at"}

func TestSubmissionUpsertScopedSetsRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db, "lms_student")

	text := "my essay"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL ROLE "lms_student"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("set_config('request.user_id'")).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, assignment_id) DO UPDATE SET")).
		WithArgs(sqlmock.AnyArg(), "s1", "a1", text, nil).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns).AddRow("sub1", "s1", "a1", text, nil, time.Now(), nil, nil, nil, nil))
	mock.ExpectCommit()

	sub, err := repo.UpsertScoped(context.Background(), SubmissionWrite{StudentID: "s1", AssignmentID: "a1", SubmissionText: &text})
	require.NoError(t, err)
	assert.Equal(t, "sub1", sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionUpsertScopedPermissionDenied(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db, "")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO assignment_submissions").
		WillReturnError(&pq.Error{Code: "42501", Message: "new row violates row-level security policy"})
	mock.ExpectRollback()

	_, err := repo.UpsertScoped(context.Background(), SubmissionWrite{StudentID: "s1", AssignmentID: "a1"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindPermissionDenied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionUpsertForeignKey(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db, "")

	mock.ExpectQuery("INSERT INTO assignment_submissions").WillReturnError(&pq.Error{Code: "23503"})

	_, err := repo.Upsert(context.Background(), SubmissionWrite{StudentID: "s1", AssignmentID: "gone"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindForeignKeyViolation))
}

func TestSubmissionListByStudentEmptyFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db, "")

	subs, err := repo.ListByStudent(context.Background(), "s1", []string{})
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
