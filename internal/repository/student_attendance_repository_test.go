package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func TestRecordAttendanceUpsertsInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, lecture_id)")).
		WithArgs(sqlmock.AnyArg(), "s1", "l1", models.AttendancePresent, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, lecture_id)")).
		WithArgs(sqlmock.AnyArg(), "s2", "l1", models.AttendanceLate, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Record(context.Background(), "l1", []models.StudentAttendance{
		{StudentID: "s1", Status: models.AttendancePresent},
		{StudentID: "s2", Status: models.AttendanceLate},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttendanceRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_attendance").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.Record(context.Background(), "l1", []models.StudentAttendance{{StudentID: "s1", Status: models.AttendanceAbsent}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
