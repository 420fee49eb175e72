package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sort"
	"sync"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type memoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	existsFn func(key string) bool
	deleted  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(ctx context.Context, key string, r io.Reader, opts storage.PutOptions) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if opts.ChunkSize > 0 && opts.Progress != nil {
		size := int64(len(data))
		for written := opts.ChunkSize; ; written += opts.ChunkSize {
			if written >= size {
				opts.Progress(100)
				break
			}
			opts.Progress(int(written * 100 / size))
		}
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "https://files.example.com/" + key, nil
}

func (m *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(key), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryStore) URL(key string) (string, error) {
	return "https://files.example.com/" + key, nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type recordingInvalidator struct {
	tags []string
	err  error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tags ...string) error {
	r.tags = append(r.tags, tags...)
	return r.err
}

type stubCourses struct {
	courses map[string]*models.CourseWithStats
}

func (s *stubCourses) FindByID(ctx context.Context, id string) (*models.CourseWithStats, error) {
	if c, ok := s.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func courseOwnedBy(id, teacherID string, status models.CourseStatus) *models.CourseWithStats {
	return &models.CourseWithStats{Course: models.Course{
		ID:          id,
		Title:       "Course " + id,
		TeacherID:   &teacherID,
		MaxStudents: 30,
		Status:      status,
	}}
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func errNoRows() error {
	return sql.ErrNoRows
}

func storageOptions() storage.PutOptions {
	return storage.PutOptions{Size: 1, ContentType: "text/plain"}
}
