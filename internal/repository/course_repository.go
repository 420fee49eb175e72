package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const courseColumns = `c.id, c.title, c.description, c.schedule_time, c.live_class_url, c.teacher_id, c.max_students, c.status, c.created_at, c.updated_at`

// enrollment_count is always computed from the enrollments table so it never drifts.
const courseStatsSelect = `SELECT ` + courseColumns + `,
	(SELECT json_build_object('id', p.id, 'full_name', p.full_name, 'email', p.email) FROM profiles p WHERE p.id = c.teacher_id) AS teacher,
	(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollment_count
FROM courses c`

// CourseRepository manages courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses with teacher and enrollment count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithStats, error) {
	var conditions []string
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []models.CourseWithStats{}, nil
		}
		args = append(args, stringArray(filter.IDs))
		conditions = append(conditions, fmt.Sprintf("c.id = ANY($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(c.title) LIKE $%d", len(args)))
	}

	query := courseStatsSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC"

	courses := []models.CourseWithStats{}
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, classify("list courses", err)
	}
	return courses, nil
}

// FindByID returns a single course with stats.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseWithStats, error) {
	var course models.CourseWithStats
	if err := r.db.GetContext(ctx, &course, courseStatsSelect+" WHERE c.id = $1", id); err != nil {
		return nil, classify("find course", err)
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, description, schedule_time, live_class_url, teacher_id, max_students, status, created_at, updated_at)
VALUES (:id, :title, :description, :schedule_time, :live_class_url, :teacher_id, :max_students, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return classify("create course", err)
	}
	return nil
}

// Update overwrites the editable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, schedule_time = :schedule_time, live_class_url = :live_class_url,
teacher_id = :teacher_id, max_students = :max_students, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return classify("update course", err)
	}
	return requireAffected("update course", res)
}

// Delete removes a course; dependent rows cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return classify("delete course", err)
	}
	return requireAffected("delete course", res)
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, classify("count courses", err)
	}
	return total, nil
}
