package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const assignmentColumns = `id, course_id, title, description, due_date, max_points, created_at`

// AssignmentRepository manages assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByCourses returns assignments of the given courses ordered by due date.
func (r *AssignmentRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error) {
	assignments := []models.Assignment{}
	if len(courseIDs) == 0 {
		return assignments, nil
	}
	const query = `SELECT ` + assignmentColumns + ` FROM assignments WHERE course_id = ANY($1) ORDER BY due_date`
	if err := r.db.SelectContext(ctx, &assignments, query, stringArray(courseIDs)); err != nil {
		return nil, classify("list assignments", err)
	}
	return assignments, nil
}

// FindByID returns an assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	var a models.Assignment
	if err := r.db.GetContext(ctx, &a, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id); err != nil {
		return nil, classify("find assignment", err)
	}
	return &a, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, max_points, created_at) VALUES (:id, :course_id, :title, :description, :due_date, :max_points, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return classify("create assignment", err)
	}
	return nil
}

// Update edits an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.Assignment) error {
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, max_points = :max_points WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return classify("update assignment", err)
	}
	return requireAffected("update assignment", res)
}

// Delete removes an assignment and its submissions.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return classify("delete assignment", err)
	}
	return requireAffected("delete assignment", res)
}
