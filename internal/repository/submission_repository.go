package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

const submissionColumns = `id, student_id, assignment_id, submission_text, file_url, submitted_at, grade, feedback, feedback_file_url, graded_at`

// A resubmission replaces the work and clears the grade; feedback stays until regraded.
const upsertSubmissionQuery = `INSERT INTO assignment_submissions (id, student_id, assignment_id, submission_text, file_url, submitted_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (student_id, assignment_id) DO UPDATE SET
	submission_text = EXCLUDED.submission_text,
	file_url = EXCLUDED.file_url,
	submitted_at = NOW(),
	grade = NULL,
	graded_at = NULL
RETURNING ` + submissionColumns

// SubmissionWrite is the logical write shared by both submission paths.
type SubmissionWrite struct {
	StudentID      string
	AssignmentID   string
	SubmissionText *string
	FileURL        *string
}

// SubmissionRepository manages assignment submissions.
type SubmissionRepository struct {
	db          *sqlx.DB
	sessionRole string
}

// NewSubmissionRepository constructs the repository. A non-empty sessionRole
// is assumed with SET LOCAL ROLE for UpsertScoped.
func NewSubmissionRepository(db *sqlx.DB, sessionRole string) *SubmissionRepository {
	return &SubmissionRepository{db: db, sessionRole: sessionRole}
}

// UpsertScoped writes the submission under the restricted session role. Row
// security or a missing grant surfaces as KindPermissionDenied.
func (r *SubmissionRepository) UpsertScoped(ctx context.Context, w SubmissionWrite) (sub *models.Submission, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classify("begin submission transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if r.sessionRole != "" {
		if _, err = tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(r.sessionRole)); err != nil {
			return nil, classify("set session role", err)
		}
		if _, err = tx.ExecContext(ctx, "SELECT set_config('request.user_id', $1, true)", w.StudentID); err != nil {
			return nil, classify("set request user", err)
		}
	}

	var out models.Submission
	if err = tx.GetContext(ctx, &out, upsertSubmissionQuery, uuid.NewString(), w.StudentID, w.AssignmentID, w.SubmissionText, w.FileURL); err != nil {
		return nil, classify("upsert submission", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, classify("commit submission", err)
	}
	return &out, nil
}

// Upsert writes the submission with the service's own privileges.
func (r *SubmissionRepository) Upsert(ctx context.Context, w SubmissionWrite) (*models.Submission, error) {
	var out models.Submission
	if err := r.db.GetContext(ctx, &out, upsertSubmissionQuery, uuid.NewString(), w.StudentID, w.AssignmentID, w.SubmissionText, w.FileURL); err != nil {
		return nil, classify("upsert submission", err)
	}
	return &out, nil
}

// FindByID returns a submission with grading context.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.student_id, s.assignment_id, s.submission_text, s.file_url, s.submitted_at, s.grade, s.feedback, s.feedback_file_url, s.graded_at,
	p.full_name AS student_name, a.title AS assignment_title, a.course_id, a.max_points
FROM assignment_submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN profiles p ON p.id = s.student_id
WHERE s.id = $1`
	var out models.SubmissionDetail
	if err := r.db.GetContext(ctx, &out, query, id); err != nil {
		return nil, classify("find submission", err)
	}
	return &out, nil
}

// ListByStudent returns a student's submissions, optionally limited to assignments.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error) {
	subs := []models.Submission{}
	query := `SELECT ` + submissionColumns + ` FROM assignment_submissions WHERE student_id = $1`
	args := []interface{}{studentID}
	if assignmentIDs != nil {
		if len(assignmentIDs) == 0 {
			return subs, nil
		}
		query += ` AND assignment_id = ANY($2)`
		args = append(args, stringArray(assignmentIDs))
	}
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, classify("list student submissions", err)
	}
	return subs, nil
}

// ListByAssignments returns submissions for the given assignments with grading context.
// ungradedOnly limits the result to work awaiting a grade.
func (r *SubmissionRepository) ListByAssignments(ctx context.Context, assignmentIDs []string, ungradedOnly bool) ([]models.SubmissionDetail, error) {
	subs := []models.SubmissionDetail{}
	if len(assignmentIDs) == 0 {
		return subs, nil
	}
	query := `SELECT s.id, s.student_id, s.assignment_id, s.submission_text, s.file_url, s.submitted_at, s.grade, s.feedback, s.feedback_file_url, s.graded_at,
	p.full_name AS student_name, a.title AS assignment_title, a.course_id, a.max_points
FROM assignment_submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN profiles p ON p.id = s.student_id
WHERE s.assignment_id = ANY($1)`
	if ungradedOnly {
		query += ` AND s.grade IS NULL`
	}
	query += ` ORDER BY s.submitted_at`
	if err := r.db.SelectContext(ctx, &subs, query, stringArray(assignmentIDs)); err != nil {
		return nil, classify("list assignment submissions", err)
	}
	return subs, nil
}

// Grade stores the grade and feedback on an existing submission.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, grade float64, feedback, feedbackFileURL *string) (*models.Submission, error) {
	const query = `UPDATE assignment_submissions SET grade = $2, feedback = COALESCE($3, feedback), feedback_file_url = COALESCE($4, feedback_file_url), graded_at = $5
WHERE id = $1 RETURNING ` + submissionColumns
	var out models.Submission
	if err := r.db.GetContext(ctx, &out, query, id, grade, feedback, feedbackFileURL, time.Now().UTC()); err != nil {
		return nil, classify(fmt.Sprintf("grade submission %s", id), err)
	}
	return &out, nil
}
