package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// ErrAlreadyCompleted is returned by MarkComplete when the record is completed or approved.
var ErrAlreadyCompleted = errors.New("lecture attendance already completed")

// ErrInvalidTransition is returned when a review targets a record that is not completed.
var ErrInvalidTransition = errors.New("lecture attendance is not awaiting review")

const attendanceColumns = `id, teacher_id, lecture_id, status, base_amount, bonus_amount, total_amount, completed_at, approved_at, rejection_reason, created_at`

// PayrollRepository manages teacher lecture attendance (timesheets).
type PayrollRepository struct {
	db *sqlx.DB
}

// NewPayrollRepository constructs the repository.
func NewPayrollRepository(db *sqlx.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

// MarkComplete inserts a completed record or promotes a scheduled/rejected one.
// Completed and approved records are left untouched and ErrAlreadyCompleted is returned.
func (r *PayrollRepository) MarkComplete(ctx context.Context, teacherID, lectureID string, baseAmount float64) (*models.LectureAttendance, error) {
	const query = `INSERT INTO lecture_attendance (id, teacher_id, lecture_id, status, base_amount, bonus_amount, total_amount, completed_at, created_at)
VALUES ($1, $2, $3, 'completed', $4, 0, $4, $5, $5)
ON CONFLICT (teacher_id, lecture_id) DO UPDATE SET
	status = 'completed',
	base_amount = EXCLUDED.base_amount,
	bonus_amount = 0,
	total_amount = EXCLUDED.base_amount,
	completed_at = EXCLUDED.completed_at,
	rejection_reason = NULL
WHERE lecture_attendance.status IN ('scheduled', 'rejected')
RETURNING ` + attendanceColumns
	var rec models.LectureAttendance
	err := r.db.GetContext(ctx, &rec, query, uuid.NewString(), teacherID, lectureID, baseAmount, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyCompleted
	}
	if err != nil {
		return nil, classify("mark lecture complete", err)
	}
	return &rec, nil
}

// Approve moves a completed record to approved with the given bonus.
func (r *PayrollRepository) Approve(ctx context.Context, id string, bonus float64) (*models.LectureAttendance, error) {
	const query = `UPDATE lecture_attendance SET status = 'approved', bonus_amount = $2, total_amount = base_amount + $2, approved_at = $3
WHERE id = $1 AND status = 'completed' RETURNING ` + attendanceColumns
	return r.review(ctx, "approve timesheet", id, query, id, bonus, time.Now().UTC())
}

// Reject moves a completed record to rejected with a reason.
func (r *PayrollRepository) Reject(ctx context.Context, id, reason string) (*models.LectureAttendance, error) {
	const query = `UPDATE lecture_attendance SET status = 'rejected', rejection_reason = $2, approved_at = NULL
WHERE id = $1 AND status = 'completed' RETURNING ` + attendanceColumns
	return r.review(ctx, "reject timesheet", id, query, id, reason)
}

func (r *PayrollRepository) review(ctx context.Context, op, id, query string, args ...interface{}) (*models.LectureAttendance, error) {
	var rec models.LectureAttendance
	err := r.db.GetContext(ctx, &rec, query, args...)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classify(op, err)
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, ErrInvalidTransition
}

// FindByID returns a single record.
func (r *PayrollRepository) FindByID(ctx context.Context, id string) (*models.LectureAttendance, error) {
	var rec models.LectureAttendance
	if err := r.db.GetContext(ctx, &rec, `SELECT `+attendanceColumns+` FROM lecture_attendance WHERE id = $1`, id); err != nil {
		return nil, classify("find timesheet", err)
	}
	return &rec, nil
}

// ListByTeacherLectures returns a teacher's records for the given lectures.
func (r *PayrollRepository) ListByTeacherLectures(ctx context.Context, teacherID string, lectureIDs []string) ([]models.LectureAttendance, error) {
	out := []models.LectureAttendance{}
	if len(lectureIDs) == 0 {
		return out, nil
	}
	const query = `SELECT ` + attendanceColumns + ` FROM lecture_attendance WHERE teacher_id = $1 AND lecture_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &out, query, teacherID, stringArray(lectureIDs)); err != nil {
		return nil, classify("list teacher timesheets", err)
	}
	return out, nil
}

// List returns timesheet entries joined with teacher, lecture and course.
func (r *PayrollRepository) List(ctx context.Context, filter models.TimesheetFilter) ([]models.TimesheetEntry, error) {
	query := `SELECT la.id, la.teacher_id, la.lecture_id, la.status, la.base_amount, la.bonus_amount, la.total_amount, la.completed_at, la.approved_at, la.rejection_reason, la.created_at,
	p.full_name AS teacher_name, l.title AS lecture_title, c.id AS course_id, c.title AS course_title, l.scheduled_at
FROM lecture_attendance la
JOIN profiles p ON p.id = la.teacher_id
JOIN lectures l ON l.id = la.lecture_id
JOIN courses c ON c.id = l.course_id`
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("la.teacher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("la.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY l.scheduled_at DESC"

	out := []models.TimesheetEntry{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, classify("list timesheets", err)
	}
	return out, nil
}

// Summary aggregates payroll per teacher.
func (r *PayrollRepository) Summary(ctx context.Context) ([]models.PayrollSummary, error) {
	const query = `SELECT la.teacher_id, p.full_name AS teacher_name,
	COUNT(*) FILTER (WHERE la.status = 'completed') AS completed,
	COUNT(*) FILTER (WHERE la.status = 'approved') AS approved,
	COUNT(*) FILTER (WHERE la.status = 'rejected') AS rejected,
	COALESCE(SUM(la.total_amount) FILTER (WHERE la.status = 'completed'), 0) AS pending_amount,
	COALESCE(SUM(la.total_amount) FILTER (WHERE la.status = 'approved'), 0) AS approved_total
FROM lecture_attendance la
JOIN profiles p ON p.id = la.teacher_id
GROUP BY la.teacher_id, p.full_name
ORDER BY p.full_name`
	out := []models.PayrollSummary{}
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, classify("summarise payroll", err)
	}
	return out, nil
}
