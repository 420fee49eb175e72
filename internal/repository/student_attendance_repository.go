package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// StudentAttendanceRepository records student presence at lectures.
type StudentAttendanceRepository struct {
	db *sqlx.DB
}

// NewStudentAttendanceRepository constructs the repository.
func NewStudentAttendanceRepository(db *sqlx.DB) *StudentAttendanceRepository {
	return &StudentAttendanceRepository{db: db}
}

// Record upserts every entry for the lecture in one transaction.
func (r *StudentAttendanceRepository) Record(ctx context.Context, lectureID string, entries []models.StudentAttendance) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify("begin attendance transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO student_attendance (id, student_id, lecture_id, status, recorded_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (student_id, lecture_id) DO UPDATE SET status = EXCLUDED.status, recorded_at = EXCLUDED.recorded_at`
	now := time.Now().UTC()
	for _, e := range entries {
		if _, err = tx.ExecContext(ctx, query, uuid.NewString(), e.StudentID, lectureID, e.Status, now); err != nil {
			return classify("record attendance", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return classify("commit attendance", err)
	}
	return nil
}

// ListByStudent returns a student's attendance for the given lectures.
func (r *StudentAttendanceRepository) ListByStudent(ctx context.Context, studentID string, lectureIDs []string) ([]models.StudentAttendance, error) {
	out := []models.StudentAttendance{}
	if len(lectureIDs) == 0 {
		return out, nil
	}
	const query = `SELECT id, student_id, lecture_id, status, recorded_at FROM student_attendance WHERE student_id = $1 AND lecture_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &out, query, studentID, stringArray(lectureIDs)); err != nil {
		return nil, classify("list student attendance", err)
	}
	return out, nil
}

// ListByLecture returns every attendance row of a lecture.
func (r *StudentAttendanceRepository) ListByLecture(ctx context.Context, lectureID string) ([]models.StudentAttendance, error) {
	out := []models.StudentAttendance{}
	const query = `SELECT id, student_id, lecture_id, status, recorded_at FROM student_attendance WHERE lecture_id = $1`
	if err := r.db.SelectContext(ctx, &out, query, lectureID); err != nil {
		return nil, classify("list lecture attendance", err)
	}
	return out, nil
}
