package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeDashboardSrv struct {
	studentResp *dto.StudentDashboard
	studentHit  bool
	teacherResp *dto.TeacherDashboard
	adminResp   *dto.AdminDashboard
	err         error
	lastUser    string
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*dto.StudentDashboard, bool, error) {
	f.lastUser = studentID
	return f.studentResp, f.studentHit, f.err
}

func (f *fakeDashboardSrv) Teacher(_ context.Context, teacherID string) (*dto.TeacherDashboard, bool, error) {
	f.lastUser = teacherID
	return f.teacherResp, false, f.err
}

func (f *fakeDashboardSrv) Admin(context.Context) (*dto.AdminDashboard, bool, error) {
	return f.adminResp, false, f.err
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestContext(method, target string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestDashboardHandlerStudentRequiresClaims(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/dashboard/student", nil)

	handler.Student(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerStudentSuccess(t *testing.T) {
	srv := &fakeDashboardSrv{
		studentResp: &dto.StudentDashboard{Courses: []dto.StudentCourseView{{ID: "course-1", Progress: 80}}},
		studentHit:  true,
	}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/dashboard/student", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Student(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", srv.lastUser)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	courses, ok := envelope.Data["courses"].([]interface{})
	require.True(t, ok)
	require.Len(t, courses, 1)
	assert.Equal(t, float64(80), courses[0].(map[string]interface{})["progress"])
}

func TestDashboardHandlerTeacherUsesCaller(t *testing.T) {
	srv := &fakeDashboardSrv{teacherResp: &dto.TeacherDashboard{Earnings: dto.EarningsSummary{Approved: 2}}}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/dashboard/teacher", &models.JWTClaims{UserID: "tea-1", Role: models.RoleTeacher})

	handler.Teacher(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tea-1", srv.lastUser)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerAdminPropagatesErrors(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrInternal, "failed to load admin dashboard")})
	c, rec := newTestContext(http.MethodGet, "/dashboard/admin", &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})

	handler.Admin(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error.Code)
}
