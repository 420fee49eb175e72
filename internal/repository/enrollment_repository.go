package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

var (
	// ErrRequestNotPending is returned when a reviewed request is reviewed again.
	ErrRequestNotPending = errors.New("enrollment request already reviewed")
	// ErrCourseFull is returned when capacity is enforced and the course is full.
	ErrCourseFull = errors.New("course is at capacity")
)

const enrollmentRequestColumns = `r.id, r.student_id, r.course_id, r.status, r.note, r.created_at, r.reviewed_at, r.reviewed_by`

// ApprovalOutcome reports the enrollment created by an approval and the course fill level.
type ApprovalOutcome struct {
	Enrollment  models.Enrollment
	Enrolled    int
	MaxStudents int
}

// EnrollmentRepository manages enrollment requests and enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateRequest stores a pending request.
func (r *EnrollmentRepository) CreateRequest(ctx context.Context, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = models.RequestStatusPending
	req.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO enrollment_requests (id, student_id, course_id, status, note, created_at) VALUES (:id, :student_id, :course_id, :status, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return classify("create enrollment request", err)
	}
	return nil
}

// HasOpenRequestOrEnrollment reports whether the student already asked for or holds a seat.
func (r *EnrollmentRepository) HasOpenRequestOrEnrollment(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)
	OR EXISTS (SELECT 1 FROM enrollment_requests WHERE student_id = $1 AND course_id = $2 AND status = 'pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, classify("check enrollment", err)
	}
	return exists, nil
}

// FindRequest returns a request by id.
func (r *EnrollmentRepository) FindRequest(ctx context.Context, id string) (*models.EnrollmentRequest, error) {
	var req models.EnrollmentRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+enrollmentRequestColumns+` FROM enrollment_requests r WHERE r.id = $1`, id); err != nil {
		return nil, classify("find enrollment request", err)
	}
	return &req, nil
}

// ListRequests returns requests with student and course names, newest first.
func (r *EnrollmentRepository) ListRequests(ctx context.Context, status models.RequestStatus) ([]models.EnrollmentRequestDetail, error) {
	query := `SELECT ` + enrollmentRequestColumns + `, p.full_name AS student_name, p.email AS student_email, c.title AS course_title
FROM enrollment_requests r
JOIN profiles p ON p.id = r.student_id
JOIN courses c ON c.id = r.course_id`
	var args []interface{}
	if status != "" {
		query += ` WHERE r.status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY r.created_at DESC`
	out := []models.EnrollmentRequestDetail{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, classify("list enrollment requests", err)
	}
	return out, nil
}

// ListRequestsByStudent returns a student's own requests.
func (r *EnrollmentRepository) ListRequestsByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error) {
	out := []models.EnrollmentRequest{}
	query := `SELECT ` + enrollmentRequestColumns + ` FROM enrollment_requests r WHERE r.student_id = $1 ORDER BY r.created_at DESC`
	if err := r.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, classify("list student enrollment requests", err)
	}
	return out, nil
}

// ApproveRequest creates the enrollment and marks the request approved in one
// transaction. The request row is locked so concurrent reviews serialise.
func (r *EnrollmentRepository) ApproveRequest(ctx context.Context, id, reviewerID string, enforceCapacity bool) (outcome *ApprovalOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify("begin approval transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var req models.EnrollmentRequest
	if err = tx.GetContext(ctx, &req, `SELECT `+enrollmentRequestColumns+` FROM enrollment_requests r WHERE r.id = $1 FOR UPDATE`, id); err != nil {
		return nil, classify("lock enrollment request", err)
	}
	if req.Status != models.RequestStatusPending {
		return nil, ErrRequestNotPending
	}

	var course struct {
		MaxStudents int `db:"max_students"`
		Enrolled    int `db:"enrolled"`
	}
	const capacityQuery = `SELECT c.max_students, (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled FROM courses c WHERE c.id = $1 FOR UPDATE OF c`
	if err = tx.GetContext(ctx, &course, capacityQuery, req.CourseID); err != nil {
		return nil, classify("lock course", err)
	}
	if enforceCapacity && course.MaxStudents > 0 && course.Enrolled >= course.MaxStudents {
		return nil, ErrCourseFull
	}

	now := time.Now().UTC()
	// xmax is zero only for a freshly inserted row.
	var enrollment struct {
		models.Enrollment
		Inserted bool `db:"inserted"`
	}
	const insertQuery = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id, course_id) DO UPDATE SET student_id = EXCLUDED.student_id
RETURNING id, student_id, course_id, enrolled_at, (xmax = 0) AS inserted`
	if err = tx.GetContext(ctx, &enrollment, insertQuery, uuid.NewString(), req.StudentID, req.CourseID, now); err != nil {
		return nil, classify("insert enrollment", err)
	}
	enrolled := course.Enrolled
	if enrollment.Inserted {
		enrolled++
	}

	const updateQuery = `UPDATE enrollment_requests SET status = 'approved', reviewed_at = $2, reviewed_by = $3 WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, updateQuery, id, now, reviewerID)
	if err != nil {
		return nil, classify("approve enrollment request", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrRequestNotPending
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, classify("commit approval", err)
	}
	return &ApprovalOutcome{Enrollment: enrollment.Enrollment, Enrolled: enrolled, MaxStudents: course.MaxStudents}, nil
}

// RejectRequest moves a pending request to rejected.
func (r *EnrollmentRepository) RejectRequest(ctx context.Context, id, reviewerID string) error {
	const query = `UPDATE enrollment_requests SET status = 'rejected', reviewed_at = $2, reviewed_by = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), reviewerID)
	if err != nil {
		return classify("reject enrollment request", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.FindRequest(ctx, id); err != nil {
		return err
	}
	return ErrRequestNotPending
}

// ListByStudent returns a student's enrollments.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	out := []models.Enrollment{}
	const query = `SELECT id, student_id, course_id, enrolled_at FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at`
	if err := r.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, classify("list student enrollments", err)
	}
	return out, nil
}

// ListStudentsByCourse returns the enrolled students of a course.
func (r *EnrollmentRepository) ListStudentsByCourse(ctx context.Context, courseID string) ([]models.ProfileSummary, error) {
	out := []models.ProfileSummary{}
	const query = `SELECT p.id, p.full_name, p.email FROM enrollments e JOIN profiles p ON p.id = e.student_id WHERE e.course_id = $1 ORDER BY p.full_name`
	if err := r.db.SelectContext(ctx, &out, query, courseID); err != nil {
		return nil, classify("list course students", err)
	}
	return out, nil
}

// IsEnrolled reports whether a student holds a seat in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var ok bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`
	if err := r.db.GetContext(ctx, &ok, query, studentID, courseID); err != nil {
		return false, classify("check enrollment", err)
	}
	return ok, nil
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) (*models.Enrollment, error) {
	var out models.Enrollment
	const query = `DELETE FROM enrollments WHERE id = $1 RETURNING id, student_id, course_id, enrolled_at`
	if err := r.db.GetContext(ctx, &out, query, id); err != nil {
		return nil, classify("delete enrollment", err)
	}
	return &out, nil
}

// Counts returns the total number of enrollments and pending requests.
func (r *EnrollmentRepository) Counts(ctx context.Context) (enrollments int, pending int, err error) {
	var row struct {
		Enrollments int `db:"enrollments"`
		Pending     int `db:"pending"`
	}
	const query = `SELECT (SELECT COUNT(*) FROM enrollments) AS enrollments, (SELECT COUNT(*) FROM enrollment_requests WHERE status = 'pending') AS pending`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, nil
		}
		return 0, 0, classify("count enrollments", err)
	}
	return row.Enrollments, row.Pending, nil
}
