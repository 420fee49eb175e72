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

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func TestLectureListWithRecordingsNormalisesRelation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "description", "scheduled_at", "created_at", "recording"}).
		AddRow("l1", "c1", "Intro", "", now, now, []byte(`[{"id":"r1","lecture_id":"l1","title":"Intro rec","video_url":"https://v/1"}]`)).
		AddRow("l2", "c1", "Second", "", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM recorded_lectures rl WHERE rl.lecture_id = l.id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	lectures, err := repo.ListWithRecordings(context.Background(), []string{"c1"})
	require.NoError(t, err)
	require.Len(t, lectures, 2)
	rec, ok := lectures[0].Recording.Get()
	require.True(t, ok)
	assert.Equal(t, "https://v/1", rec.VideoURL)
	assert.False(t, lectures[1].Recording.Present())
}

func TestLectureListWithRecordingsMissingTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	mock.ExpectQuery("recorded_lectures").WillReturnError(&pq.Error{Code: "42P01", Message: `relation "recorded_lectures" does not exist`})

	_, err := repo.ListWithRecordings(context.Background(), []string{"c1"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindRelationMissing))
}

func TestLectureUpsertRecordingIsSingleStatement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (lecture_id) DO UPDATE SET title = EXCLUDED.title")).
		WithArgs(sqlmock.AnyArg(), "l1", "Week 1", "https://v/1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lecture_id", "title", "video_url", "created_at", "updated_at"}).AddRow("r1", "l1", "Week 1", "https://v/1", now, now))

	rec := &models.RecordedLecture{LectureID: "l1", Title: "Week 1", VideoURL: "https://v/1"}
	require.NoError(t, repo.UpsertRecording(context.Background(), rec))
	assert.Equal(t, "r1", rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
