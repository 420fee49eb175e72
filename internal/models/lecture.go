package models

import "time"

// Lecture is a scheduled session of a course.
type Lecture struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RecordedLecture is the optional video attached to a lecture.
type RecordedLecture struct {
	ID        string    `db:"id" json:"id"`
	LectureID string    `db:"lecture_id" json:"lecture_id"`
	Title     string    `db:"title" json:"title"`
	VideoURL  string    `db:"video_url" json:"video_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LectureWithRecording embeds the recording when one exists.
type LectureWithRecording struct {
	Lecture
	Recording Relation[RecordedLecture] `db:"recording" json:"recording"`
}
