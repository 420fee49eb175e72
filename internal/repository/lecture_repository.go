package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const lectureColumns = `l.id, l.course_id, l.title, l.description, l.scheduled_at, l.created_at`

// LectureRepository manages lectures and their recordings.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// ListByCourses returns lectures for the given courses ordered by schedule.
func (r *LectureRepository) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Lecture, error) {
	lectures := []models.Lecture{}
	if len(courseIDs) == 0 {
		return lectures, nil
	}
	const query = `SELECT ` + lectureColumns + ` FROM lectures l WHERE l.course_id = ANY($1) ORDER BY l.scheduled_at`
	if err := r.db.SelectContext(ctx, &lectures, query, stringArray(courseIDs)); err != nil {
		return nil, classify("list lectures", err)
	}
	return lectures, nil
}

// ListWithRecordings returns lectures with their recording embedded. It fails
// with KindRelationMissing when the recordings table is absent.
func (r *LectureRepository) ListWithRecordings(ctx context.Context, courseIDs []string) ([]models.LectureWithRecording, error) {
	lectures := []models.LectureWithRecording{}
	if len(courseIDs) == 0 {
		return lectures, nil
	}
	const query = `SELECT ` + lectureColumns + `,
	(SELECT json_agg(json_build_object('id', rl.id, 'lecture_id', rl.lecture_id, 'title', rl.title, 'video_url', rl.video_url, 'created_at', rl.created_at, 'updated_at', rl.updated_at))
	 FROM recorded_lectures rl WHERE rl.lecture_id = l.id) AS recording
FROM lectures l WHERE l.course_id = ANY($1) ORDER BY l.scheduled_at`
	if err := r.db.SelectContext(ctx, &lectures, query, stringArray(courseIDs)); err != nil {
		return nil, classify("list lectures with recordings", err)
	}
	return lectures, nil
}

// FindByID returns a lecture.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, `SELECT `+lectureColumns+` FROM lectures l WHERE l.id = $1`, id); err != nil {
		return nil, classify("find lecture", err)
	}
	return &lecture, nil
}

// Create inserts a lecture.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	lecture.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO lectures (id, course_id, title, description, scheduled_at, created_at) VALUES (:id, :course_id, :title, :description, :scheduled_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return classify("create lecture", err)
	}
	return nil
}

// Update edits lecture details.
func (r *LectureRepository) Update(ctx context.Context, lecture *models.Lecture) error {
	const query = `UPDATE lectures SET title = :title, description = :description, scheduled_at = :scheduled_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lecture)
	if err != nil {
		return classify("update lecture", err)
	}
	return requireAffected("update lecture", res)
}

// Delete removes a lecture.
func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lectures WHERE id = $1`, id)
	if err != nil {
		return classify("delete lecture", err)
	}
	return requireAffected("delete lecture", res)
}

// UpsertRecording attaches or replaces the recording of a lecture in one statement.
func (r *LectureRepository) UpsertRecording(ctx context.Context, rec *models.RecordedLecture) error {
	now := time.Now().UTC()
	const query = `INSERT INTO recorded_lectures (id, lecture_id, title, video_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (lecture_id) DO UPDATE SET title = EXCLUDED.title, video_url = EXCLUDED.video_url, updated_at = EXCLUDED.updated_at
RETURNING id, lecture_id, title, video_url, created_at, updated_at`
	if err := r.db.GetContext(ctx, rec, query, uuid.NewString(), rec.LectureID, rec.Title, rec.VideoURL, now); err != nil {
		return classify("upsert recording", err)
	}
	return nil
}
