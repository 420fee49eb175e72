package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type assignmentRepository interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, a *models.Assignment) error
	Update(ctx context.Context, a *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type gradingRepository interface {
	FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	ListByAssignments(ctx context.Context, assignmentIDs []string, ungradedOnly bool) ([]models.SubmissionDetail, error)
	Grade(ctx context.Context, id string, grade float64, feedback, feedbackFileURL *string) (*models.Submission, error)
}

// AssignmentService manages coursework and grading.
type AssignmentService struct {
	repo         assignmentRepository
	submissions  gradingRepository
	courses      courseFinder
	roster       rosterLookup
	store        storage.Store
	compensation jobEnqueuer
	cache        cacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, submissions gradingRepository, courses courseFinder, roster rosterLookup, store storage.Store, compensation jobEnqueuer, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, submissions: submissions, courses: courses, roster: roster, store: store, compensation: compensation, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// ListByCourse returns a course's assignments.
func (s *AssignmentService) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	items, err := s.repo.ListByCourses(ctx, []string{courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// Create adds an assignment to a course the actor owns.
func (s *AssignmentService) Create(ctx context.Context, actor Actor, req dto.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	course, err := s.ownedCourse(ctx, actor, req.CourseID)
	if err != nil {
		return nil, err
	}
	a := &models.Assignment{
		CourseID:    req.CourseID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueDate:     req.DueDate.UTC(),
		MaxPoints:   req.MaxPoints,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, writeError(err, "failed to create assignment")
	}
	s.afterWrite(ctx, course)
	return a, nil
}

// Update edits an assignment.
func (s *AssignmentService) Update(ctx context.Context, actor Actor, id string, req dto.UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	a, course, err := s.ownedAssignment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	a.Title = strings.TrimSpace(req.Title)
	a.Description = req.Description
	a.DueDate = req.DueDate.UTC()
	a.MaxPoints = req.MaxPoints
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, writeError(err, "failed to update assignment")
	}
	s.afterWrite(ctx, course)
	return a, nil
}

// Delete removes an assignment and its submissions.
func (s *AssignmentService) Delete(ctx context.Context, actor Actor, id string) error {
	_, course, err := s.ownedAssignment(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return writeError(err, "failed to delete assignment")
	}
	s.afterWrite(ctx, course)
	return nil
}

// Submissions lists the work handed in for an assignment.
func (s *AssignmentService) Submissions(ctx context.Context, actor Actor, assignmentID string, ungradedOnly bool) ([]models.SubmissionDetail, error) {
	if _, _, err := s.ownedAssignment(ctx, actor, assignmentID); err != nil {
		return nil, err
	}
	subs, err := s.submissions.ListByAssignments(ctx, []string{assignmentID}, ungradedOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

// Grade records a grade and feedback on an existing submission. An optional
// feedback file is stored next to the submission.
func (s *AssignmentService) Grade(ctx context.Context, actor Actor, submissionID string, req dto.GradeSubmissionRequest, feedbackFile *dto.FileUpload) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		return nil, lookupError(err, "submission not found", "failed to load submission")
	}
	course, err := s.ownedCourse(ctx, actor, sub.CourseID)
	if err != nil {
		return nil, err
	}
	if req.Grade > float64(sub.MaxPoints) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade must be between 0 and %d", sub.MaxPoints))
	}

	var feedback *string
	if req.Feedback != nil && strings.TrimSpace(*req.Feedback) != "" {
		feedback = stringPtr(strings.TrimSpace(*req.Feedback))
	}
	var feedbackURL *string
	var uploadedKey string
	if feedbackFile != nil && s.store != nil {
		key := fmt.Sprintf("feedback/%s/%d_%s", sub.ID, s.now().UnixNano(), storage.SanitizeName(feedbackFile.Name))
		url, err := s.store.Put(ctx, key, feedbackFile.Body, storage.PutOptions{Size: feedbackFile.Size, ContentType: feedbackFile.ContentType})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, "failed to upload feedback file")
		}
		feedbackURL = &url
		uploadedKey = key
	}

	graded, err := s.submissions.Grade(ctx, submissionID, req.Grade, feedback, feedbackURL)
	if err != nil {
		if uploadedKey != "" {
			compensateUpload(ctx, s.compensation, s.store, nil, s.logger, uploadedKey)
		}
		return nil, lookupError(err, "submission not found", "failed to grade submission")
	}
	tags := []string{StudentTag(sub.StudentID)}
	if course.TeacherID != nil {
		tags = append(tags, TeacherTag(*course.TeacherID))
	}
	invalidate(ctx, s.cache, s.logger, tags...)
	return graded, nil
}

// Gradebook renders every enrolled student's grades for a course.
func (s *AssignmentService) Gradebook(ctx context.Context, actor Actor, courseID string, format export.Format) ([]byte, string, error) {
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return nil, "", err
	}
	assignments, err := s.repo.ListByCourses(ctx, []string{courseID})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	students, err := s.roster.ListStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.ID
	}
	subs, err := s.submissions.ListByAssignments(ctx, ids, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	table := buildGradebook(course.Title, assignments, students, subs)
	body, err := export.Render(table, format)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render gradebook")
	}
	filename := fmt.Sprintf("gradebook_%s.%s", storage.SanitizeName(course.Title), format)
	return body, filename, nil
}

func buildGradebook(title string, assignments []models.Assignment, students []models.ProfileSummary, subs []models.SubmissionDetail) export.Table {
	sort.SliceStable(assignments, func(i, j int) bool { return assignments[i].DueDate.Before(assignments[j].DueDate) })

	headers := []string{"Student"}
	for _, a := range assignments {
		headers = append(headers, fmt.Sprintf("%s (/%d)", a.Title, a.MaxPoints))
	}
	headers = append(headers, "Average %")

	bySA := make(map[string]map[string]models.SubmissionDetail, len(students))
	for _, sub := range subs {
		if bySA[sub.StudentID] == nil {
			bySA[sub.StudentID] = make(map[string]models.SubmissionDetail)
		}
		bySA[sub.StudentID][sub.AssignmentID] = sub
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		row := []string{st.FullName}
		var sumPct float64
		var graded int
		for _, a := range assignments {
			sub, ok := bySA[st.ID][a.ID]
			switch {
			case !ok:
				row = append(row, "-")
			case sub.Grade == nil:
				row = append(row, "submitted")
			default:
				row = append(row, strconv.FormatFloat(*sub.Grade, 'f', -1, 64))
				if pct, _ := GradeBadgeFor(sub.Grade, a.MaxPoints); pct != nil {
					sumPct += *pct
					graded++
				}
			}
		}
		avg := "-"
		if graded > 0 {
			avg = strconv.FormatFloat(sumPct/float64(graded), 'f', 1, 64)
		}
		rows = append(rows, append(row, avg))
	}
	return export.Table{Title: "Gradebook: " + title, Headers: headers, Rows: rows}
}

func (s *AssignmentService) ownedCourse(ctx context.Context, actor Actor, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupError(err, "course not found", "failed to load course")
	}
	if err := ensureCourseOwner(actor, &course.Course); err != nil {
		return nil, err
	}
	return &course.Course, nil
}

func (s *AssignmentService) ownedAssignment(ctx context.Context, actor Actor, id string) (*models.Assignment, *models.Course, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, lookupError(err, "assignment not found", "failed to load assignment")
	}
	course, err := s.ownedCourse(ctx, actor, a.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return a, course, nil
}

func (s *AssignmentService) afterWrite(ctx context.Context, course *models.Course) {
	tags := []string{AdminTag}
	if course.TeacherID != nil {
		tags = append(tags, TeacherTag(*course.TeacherID))
	}
	tags = append(tags, rosterTags(ctx, s.roster, s.logger, course.ID)...)
	invalidate(ctx, s.cache, s.logger, tags...)
}
