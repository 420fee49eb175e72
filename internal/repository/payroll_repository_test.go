package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

var attendanceRowColumns = []string{"id", "teacher_id", "lecture_id", "status", "base_amount", "bonus_amount", "total_amount", "completed_at", "approved_at", "rejection_reason", "created_at"}

func TestMarkCompleteFirstTime(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lecture_attendance.status IN ('scheduled', 'rejected')")).
		WithArgs(sqlmock.AnyArg(), "t1", "l1", 150.0, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).AddRow("la1", "t1", "l1", "completed", 150.0, 0.0, 150.0, now, nil, nil, now))

	rec, err := repo.MarkComplete(context.Background(), "t1", "l1", 150)
	require.NoError(t, err)
	assert.Equal(t, models.PayrollStatusCompleted, rec.Status)
	assert.Equal(t, 150.0, rec.BaseAmount)
	assert.Equal(t, 0.0, rec.BonusAmount)
	assert.Equal(t, 150.0, rec.TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompleteAlreadyCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	// the conditional upsert writes nothing and returns no row
	mock.ExpectQuery("INSERT INTO lecture_attendance").WillReturnRows(sqlmock.NewRows(attendanceRowColumns))

	_, err := repo.MarkComplete(context.Background(), "t1", "l1", 150)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveTimesheetNotCompleted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPayrollRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE lecture_attendance SET status = 'approved'")).
		WithArgs("la1", 25.0, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM lecture_attendance WHERE id = $1")).
		WithArgs("la1").
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).AddRow("la1", "t1", "l1", "approved", 150.0, 0.0, 150.0, now, now, nil, now))

	_, err := repo.Approve(context.Background(), "la1", 25)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
