package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type dashboardEnrollments interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListRequests(ctx context.Context, status models.RequestStatus) ([]models.EnrollmentRequestDetail, error)
	Counts(ctx context.Context) (int, int, error)
}

type dashboardCourses interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithStats, error)
}

type dashboardAssignments interface {
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Assignment, error)
}

type dashboardSubmissions interface {
	ListByStudent(ctx context.Context, studentID string, assignmentIDs []string) ([]models.Submission, error)
	ListByAssignments(ctx context.Context, assignmentIDs []string, ungradedOnly bool) ([]models.SubmissionDetail, error)
}

type dashboardAttendance interface {
	ListByStudent(ctx context.Context, studentID string, lectureIDs []string) ([]models.StudentAttendance, error)
}

type dashboardPayroll interface {
	ListByTeacherLectures(ctx context.Context, teacherID string, lectureIDs []string) ([]models.LectureAttendance, error)
	List(ctx context.Context, filter models.TimesheetFilter) ([]models.TimesheetEntry, error)
}

type dashboardProfiles interface {
	CountByRole(ctx context.Context) (map[models.Role]int, int, error)
	List(ctx context.Context, filter models.ProfileFilter) ([]models.Profile, int, error)
}

type dashboardPayments interface {
	List(ctx context.Context, status models.PaymentStatus, studentID string) ([]models.PaymentDetail, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Enrollments dashboardEnrollments
	Courses     dashboardCourses
	Lectures    lectureRepository
	Assignments dashboardAssignments
	Submissions dashboardSubmissions
	Attendance  dashboardAttendance
	Payroll     dashboardPayroll
	Profiles    dashboardProfiles
	Payments    dashboardPayments
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	CacheTTL    time.Duration
}

// DashboardService composes the per-role view models. Each entity type is
// loaded with one query filtered by foreign-key sets and joined in memory.
type DashboardService struct {
	enrollments dashboardEnrollments
	courses     dashboardCourses
	lectures    lectureRepository
	assignments dashboardAssignments
	submissions dashboardSubmissions
	attendance  dashboardAttendance
	payroll     dashboardPayroll
	profiles    dashboardProfiles
	payments    dashboardPayments
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	ttl         time.Duration
	now         func() time.Time
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		enrollments: params.Enrollments,
		courses:     params.Courses,
		lectures:    params.Lectures,
		assignments: params.Assignments,
		submissions: params.Submissions,
		attendance:  params.Attendance,
		payroll:     params.Payroll,
		profiles:    params.Profiles,
		payments:    params.Payments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Student returns the student home page and whether it came from cache.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboard, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	key := CacheKey(StudentTag(studentID), "dashboard")
	var cached dto.StudentDashboard
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	start := time.Now()
	view, err := s.composeStudent(ctx, studentID)
	s.metrics.ObserveDashboardBuild("student", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student dashboard")
	}
	s.persistCache(ctx, key, view)
	return view, false, nil
}

// Teacher returns the teacher home page and whether it came from cache.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*dto.TeacherDashboard, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	key := CacheKey(TeacherTag(teacherID), "dashboard")
	var cached dto.TeacherDashboard
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	start := time.Now()
	view, err := s.composeTeacher(ctx, teacherID)
	s.metrics.ObserveDashboardBuild("teacher", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher dashboard")
	}
	s.persistCache(ctx, key, view)
	return view, false, nil
}

// Admin returns the admin home page and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboard, bool, error) {
	key := CacheKey(AdminTag, "dashboard")
	var cached dto.AdminDashboard
	if s.tryCache(ctx, key, &cached) {
		return &cached, true, nil
	}
	start := time.Now()
	view, err := s.composeAdmin(ctx)
	s.metrics.ObserveDashboardBuild("admin", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin dashboard")
	}
	s.persistCache(ctx, key, view)
	return view, false, nil
}

func (s *DashboardService) composeStudent(ctx context.Context, studentID string) (*dto.StudentDashboard, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	courseIDs := make([]string, 0, len(enrollments))
	enrolledAt := make(map[string]time.Time, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
		enrolledAt[e.CourseID] = e.EnrolledAt
	}

	var (
		courses     []models.CourseWithStats
		lectures    []models.LectureWithRecording
		assignments []models.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = s.courses.List(gctx, models.CourseFilter{IDs: courseIDs})
		return err
	})
	g.Go(func() (err error) {
		lectures, err = listLecturesWithRecordings(gctx, s.lectures, s.logger, courseIDs)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.assignments.ListByCourses(gctx, courseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		submissions []models.Submission
		attendance  []models.StudentAttendance
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		submissions, err = s.submissions.ListByStudent(gctx, studentID, assignmentIDs(assignments))
		return err
	})
	g.Go(func() (err error) {
		attendance, err = s.attendance.ListByStudent(gctx, studentID, lectureIDs(lectures))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildStudentDashboard(s.now().UTC(), courses, enrolledAt, lectures, assignments, submissions, attendance), nil
}

func buildStudentDashboard(now time.Time, courses []models.CourseWithStats, enrolledAt map[string]time.Time, lectures []models.LectureWithRecording,
	assignments []models.Assignment, submissions []models.Submission, attendance []models.StudentAttendance) *dto.StudentDashboard {
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	subByAssignment := make(map[string]*models.Submission, len(submissions))
	for i := range submissions {
		subByAssignment[submissions[i].AssignmentID] = &submissions[i]
	}
	attendanceByLecture := make(map[string]models.AttendanceStatus, len(attendance))
	for _, a := range attendance {
		attendanceByLecture[a.LectureID] = a.Status
	}

	type tally struct{ done, assignments, present, records int }
	tallies := make(map[string]*tally, len(courses))
	for _, c := range courses {
		tallies[c.ID] = &tally{}
	}

	view := &dto.StudentDashboard{
		Courses:          make([]dto.StudentCourseView, 0, len(courses)),
		Assignments:      make([]dto.StudentAssignmentView, 0, len(assignments)),
		UpcomingLectures: []dto.LectureView{},
		Recordings:       []dto.LectureView{},
		GeneratedAt:      now,
	}

	for _, a := range assignments {
		sub := subByAssignment[a.ID]
		status, submittable := AssignmentState(a, sub, now)
		var grade *float64
		if sub != nil {
			grade = sub.Grade
		}
		percent, badge := GradeBadgeFor(grade, a.MaxPoints)
		view.Assignments = append(view.Assignments, dto.StudentAssignmentView{
			ID:           a.ID,
			CourseID:     a.CourseID,
			CourseTitle:  titles[a.CourseID],
			Title:        a.Title,
			Description:  a.Description,
			DueDate:      a.DueDate,
			MaxPoints:    a.MaxPoints,
			Status:       status,
			Submittable:  submittable,
			Submission:   sub,
			GradePercent: percent,
			GradeBadge:   badge,
		})
		if t := tallies[a.CourseID]; t != nil {
			t.assignments++
			if sub != nil {
				t.done++
			}
		}
	}
	sort.SliceStable(view.Assignments, func(i, j int) bool { return view.Assignments[i].DueDate.Before(view.Assignments[j].DueDate) })

	for _, l := range lectures {
		lv := dto.LectureView{
			ID:          l.ID,
			CourseID:    l.CourseID,
			CourseTitle: titles[l.CourseID],
			Title:       l.Title,
			Description: l.Description,
			ScheduledAt: l.ScheduledAt,
		}
		if rec, ok := l.Recording.Get(); ok {
			lv.Recording = &rec
		}
		if status, ok := attendanceByLecture[l.ID]; ok {
			lv.Attendance = string(status)
			if t := tallies[l.CourseID]; t != nil {
				t.records++
				if status == models.AttendancePresent {
					t.present++
				}
			}
		}
		if !l.ScheduledAt.Before(now) {
			view.UpcomingLectures = append(view.UpcomingLectures, lv)
		}
		if lv.Recording != nil {
			view.Recordings = append(view.Recordings, lv)
		}
	}
	sort.SliceStable(view.Recordings, func(i, j int) bool { return view.Recordings[i].ScheduledAt.After(view.Recordings[j].ScheduledAt) })

	for _, c := range courses {
		t := tallies[c.ID]
		teacherName := ""
		if teacher, ok := c.Teacher.Get(); ok {
			teacherName = teacher.FullName
		}
		view.Courses = append(view.Courses, dto.StudentCourseView{
			ID:              c.ID,
			Title:           c.Title,
			Description:     c.Description,
			ScheduleTime:    c.ScheduleTime,
			LiveClassURL:    c.LiveClassURL,
			TeacherName:     teacherName,
			EnrollmentCount: c.EnrollmentCount,
			MaxStudents:     c.MaxStudents,
			EnrolledAt:      enrolledAt[c.ID],
			Progress:        CourseProgress(t.done, t.assignments, t.present, t.records),
		})
	}
	return view
}

func (s *DashboardService) composeTeacher(ctx context.Context, teacherID string) (*dto.TeacherDashboard, error) {
	courses, err := s.courses.List(ctx, models.CourseFilter{TeacherID: teacherID})
	if err != nil {
		return nil, err
	}
	courseIDs := make([]string, len(courses))
	for i, c := range courses {
		courseIDs[i] = c.ID
	}

	var (
		lectures    []models.LectureWithRecording
		assignments []models.Assignment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lectures, err = listLecturesWithRecordings(gctx, s.lectures, s.logger, courseIDs)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = s.assignments.ListByCourses(gctx, courseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		records []models.LectureAttendance
		pending []models.SubmissionDetail
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		records, err = s.payroll.ListByTeacherLectures(gctx, teacherID, lectureIDs(lectures))
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.submissions.ListByAssignments(gctx, assignmentIDs(assignments), true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildTeacherDashboard(s.now().UTC(), courses, lectures, assignments, records, pending), nil
}

func buildTeacherDashboard(now time.Time, courses []models.CourseWithStats, lectures []models.LectureWithRecording, assignments []models.Assignment,
	records []models.LectureAttendance, pending []models.SubmissionDetail) *dto.TeacherDashboard {
	titles := make(map[string]string, len(courses))
	lectureCount := make(map[string]int)
	assignmentCount := make(map[string]int)
	pendingCount := make(map[string]int)
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	for _, a := range assignments {
		assignmentCount[a.CourseID]++
	}
	for _, p := range pending {
		pendingCount[p.CourseID]++
	}
	recordByLecture := make(map[string]models.LectureAttendance, len(records))
	for _, r := range records {
		recordByLecture[r.LectureID] = r
	}

	view := &dto.TeacherDashboard{
		Courses:            make([]dto.TeacherCourseView, 0, len(courses)),
		Lectures:           make([]dto.TeacherLectureView, 0, len(lectures)),
		PendingSubmissions: pending,
		GeneratedAt:        now,
	}
	if view.PendingSubmissions == nil {
		view.PendingSubmissions = []models.SubmissionDetail{}
	}

	for _, l := range lectures {
		lectureCount[l.CourseID]++
		lv := dto.TeacherLectureView{
			LectureView: dto.LectureView{
				ID:          l.ID,
				CourseID:    l.CourseID,
				CourseTitle: titles[l.CourseID],
				Title:       l.Title,
				Description: l.Description,
				ScheduledAt: l.ScheduledAt,
			},
			PayrollStatus: models.PayrollStatusScheduled,
		}
		if rec, ok := l.Recording.Get(); ok {
			lv.Recording = &rec
		}
		if r, ok := recordByLecture[l.ID]; ok {
			lv.PayrollStatus = r.Status
			lv.TotalAmount = r.TotalAmount
		}
		lv.CanMarkDone = lv.PayrollStatus == models.PayrollStatusScheduled || lv.PayrollStatus == models.PayrollStatusRejected
		view.Lectures = append(view.Lectures, lv)
	}

	for _, r := range records {
		switch r.Status {
		case models.PayrollStatusCompleted:
			view.Earnings.Completed++
			view.Earnings.PendingAmount += r.TotalAmount
		case models.PayrollStatusApproved:
			view.Earnings.Approved++
			view.Earnings.ApprovedAmount += r.TotalAmount
		case models.PayrollStatusRejected:
			view.Earnings.Rejected++
		}
	}

	for _, c := range courses {
		view.Courses = append(view.Courses, dto.TeacherCourseView{
			Course:          c.Course,
			EnrollmentCount: c.EnrollmentCount,
			LectureCount:    lectureCount[c.ID],
			AssignmentCount: assignmentCount[c.ID],
			PendingGrading:  pendingCount[c.ID],
		})
	}
	return view
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*dto.AdminDashboard, error) {
	view := &dto.AdminDashboard{GeneratedAt: s.now().UTC()}
	var roleCounts map[models.Role]int
	pendingTeachersOnly := false

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		roleCounts, view.Stats.PendingTeachers, err = s.profiles.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		view.Courses, err = s.courses.List(gctx, models.CourseFilter{})
		return err
	})
	g.Go(func() (err error) {
		view.Stats.Enrollments, view.Stats.PendingRequests, err = s.enrollments.Counts(gctx)
		return err
	})
	g.Go(func() (err error) {
		view.PendingRequests, err = s.enrollments.ListRequests(gctx, models.RequestStatusPending)
		return err
	})
	g.Go(func() (err error) {
		view.PendingTeachers, _, err = s.profiles.List(gctx, models.ProfileFilter{Role: models.RoleTeacher, Approved: &pendingTeachersOnly, PageSize: 100})
		return err
	})
	g.Go(func() (err error) {
		view.PendingTimesheets, err = s.payroll.List(gctx, models.TimesheetFilter{Status: models.PayrollStatusCompleted})
		return err
	})
	g.Go(func() (err error) {
		view.PendingPayments, err = s.payments.List(gctx, models.PaymentStatusPending, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view.Stats.Students = roleCounts[models.RoleStudent]
	view.Stats.Teachers = roleCounts[models.RoleTeacher]
	view.Stats.Courses = len(view.Courses)
	view.Stats.PendingTimesheets = len(view.PendingTimesheets)
	view.Stats.PendingPayments = len(view.PendingPayments)
	return view, nil
}

func (s *DashboardService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func assignmentIDs(items []models.Assignment) []string {
	ids := make([]string, len(items))
	for i, a := range items {
		ids[i] = a.ID
	}
	return ids
}

func lectureIDs(items []models.LectureWithRecording) []string {
	ids := make([]string, len(items))
	for i, l := range items {
		ids[i] = l.ID
	}
	return ids
}
