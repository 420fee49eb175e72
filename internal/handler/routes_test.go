package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type fakeCourseSrv struct {
	deleted []string
	listFor service.Actor
}

func (f *fakeCourseSrv) List(_ context.Context, actor service.Actor, _ models.CourseFilter) ([]models.CourseWithStats, error) {
	f.listFor = actor
	return []models.CourseWithStats{}, nil
}

func (f *fakeCourseSrv) Get(context.Context, string) (*models.CourseWithStats, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

func (f *fakeCourseSrv) Create(_ context.Context, req dto.CreateCourseRequest) (*models.CourseWithStats, error) {
	return &models.CourseWithStats{Course: models.Course{ID: "course-new", Title: req.Title}}, nil
}

func (f *fakeCourseSrv) Update(context.Context, string, dto.UpdateCourseRequest) (*models.CourseWithStats, error) {
	return nil, nil
}

func (f *fakeCourseSrv) Delete(_ context.Context, id string, confirm bool) error {
	if !confirm {
		return appErrors.ErrConfirmationRequired
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type recordingAuditWriter struct {
	entries []*models.AuditLog
}

func (r *recordingAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return nil
}

func newTestRouter(courses *fakeCourseSrv, audit *recordingAuditWriter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	tokens := staticTokens{
		"student": {UserID: "stu-1", Role: models.RoleStudent},
		"teacher": {UserID: "tea-1", Role: models.RoleTeacher},
		"admin":   {UserID: "adm-1", Role: models.RoleAdmin},
	}
	RegisterRoutes(engine.Group("/api/v1"), Handlers{
		Auth:        NewAuthHandler(nil, CookieSettings{}),
		Dashboard:   NewDashboardHandler(&fakeDashboardSrv{studentResp: &dto.StudentDashboard{}}),
		Courses:     NewCourseHandler(courses),
		Lectures:    NewLectureHandler(nil),
		Assignments: NewAssignmentHandler(nil),
		Submissions: NewSubmissionHandler(&fakeSubmissionSrv{}),
		Enrollments: NewEnrollmentHandler(nil),
		Payroll:     NewPayrollHandler(nil),
		Payments:    NewPaymentHandler(nil),
		Profiles:    NewProfileHandler(nil),
		Events:      NewEventHandler(nil, 0),
		Metrics:     NewMetricsHandler(nil, nil),
	}, RouteDeps{Tokens: tokens, CookieName: "access_token", Audit: audit})
	return engine
}

func serve(engine *gin.Engine, method, target, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRoutesEnforceRoles(t *testing.T) {
	courses := &fakeCourseSrv{}
	engine := newTestRouter(courses, &recordingAuditWriter{})

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/courses", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/courses", "student", "").Code)
	assert.Equal(t, models.RoleStudent, courses.listFor.Role)

	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodPost, "/api/v1/courses", "teacher", `{"title":"Go"}`).Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/v1/dashboard/admin", "student", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/dashboard/student", "student", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/v1/dashboard/student", "teacher", "").Code)
}

func TestRoutesCourseDeleteNeedsConfirmationAndIsAudited(t *testing.T) {
	courses := &fakeCourseSrv{}
	audit := &recordingAuditWriter{}
	engine := newTestRouter(courses, audit)

	rec := serve(engine, http.MethodDelete, "/api/v1/courses/course-1", "admin", "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Empty(t, courses.deleted)
	assert.Empty(t, audit.entries)

	rec = serve(engine, http.MethodDelete, "/api/v1/courses/course-1?confirm=true", "admin", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"course-1"}, courses.deleted)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionDelete, audit.entries[0].Action)
	assert.Equal(t, "course-1", *audit.entries[0].ResourceID)
}

func TestRoutesFallbackEndpointAcceptsCookie(t *testing.T) {
	engine := newTestRouter(&fakeCourseSrv{}, &recordingAuditWriter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit-assignment", strings.NewReader(`{"assignment_id":"a-1","submission_text":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "student"})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message"`)
}
