package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type fakeSubmissionSrv struct {
	lastInput   dto.SubmitAssignmentInput
	fileBody    string
	result      *dto.SubmissionResult
	err         error
	privileged  *models.Submission
	privErr     error
	lastStudent string
	lastReq     dto.FallbackSubmitRequest
}

func (f *fakeSubmissionSrv) Submit(_ context.Context, in dto.SubmitAssignmentInput) (*dto.SubmissionResult, error) {
	f.lastInput = in
	if in.File != nil {
		body, _ := io.ReadAll(in.File.Body)
		f.fileBody = string(body)
	}
	return f.result, f.err
}

func (f *fakeSubmissionSrv) SubmitPrivileged(_ context.Context, studentID string, req dto.FallbackSubmitRequest) (*models.Submission, error) {
	f.lastStudent = studentID
	f.lastReq = req
	return f.privileged, f.privErr
}

func (f *fakeSubmissionSrv) ListMine(context.Context, string) ([]models.Submission, error) {
	return nil, nil
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, fileName, fileBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(fileBody))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmissionHandlerSubmitPassesFormAndToken(t *testing.T) {
	srv := &fakeSubmissionSrv{result: &dto.SubmissionResult{
		Submission: &models.Submission{ID: "sub-1"},
		Path:       dto.SubmissionPathFallback,
	}}
	handler := NewSubmissionHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Request = multipartRequest(t, "/assignments/a-1/submit", map[string]string{"submission_text": "my answer"}, "file", "essay.pdf", "pdf-bytes")
	c.Params = gin.Params{{Key: "id", Value: "a-1"}}
	c.Set(middleware.ContextTokenKey, "token-abc")

	handler.Submit(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", srv.lastInput.StudentID)
	assert.Equal(t, "a-1", srv.lastInput.AssignmentID)
	assert.Equal(t, "my answer", srv.lastInput.Text)
	assert.Equal(t, "token-abc", srv.lastInput.BearerToken)
	require.NotNil(t, srv.lastInput.File)
	assert.Equal(t, "essay.pdf", srv.lastInput.File.Name)
	assert.Equal(t, int64(len("pdf-bytes")), srv.lastInput.File.Size)
	assert.Equal(t, "pdf-bytes", srv.fileBody)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "fallback", envelope.Meta["submission_path"])
	assert.Equal(t, "fallback", envelope.Data["path"])
}

func TestSubmissionHandlerSubmitWithoutFile(t *testing.T) {
	srv := &fakeSubmissionSrv{result: &dto.SubmissionResult{Path: dto.SubmissionPathDirect}}
	handler := NewSubmissionHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Request = multipartRequest(t, "/assignments/a-1/submit", map[string]string{"submission_text": "only text"}, "", "", "")

	handler.Submit(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, srv.lastInput.File)
}

func TestSubmissionHandlerSubmitMapsServiceErrors(t *testing.T) {
	srv := &fakeSubmissionSrv{err: appErrors.Clone(appErrors.ErrFallbackFailed, "primary: denied; fallback: 500")}
	handler := NewSubmissionHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Request = multipartRequest(t, "/assignments/a-1/submit", map[string]string{"submission_text": "x"}, "", "", "")

	handler.Submit(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "FALLBACK_FAILED", envelope.Error.Code)
}

func TestSubmitAssignmentFallbackContract(t *testing.T) {
	t.Run("unauthenticated", func(t *testing.T) {
		handler := NewSubmissionHandler(&fakeSubmissionSrv{})
		c, rec := newTestContext(http.MethodPost, "/submit-assignment", nil)

		handler.SubmitAssignmentFallback(c)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body dto.FallbackErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Error)
	})

	t.Run("success", func(t *testing.T) {
		text := "answer"
		srv := &fakeSubmissionSrv{privileged: &models.Submission{ID: "sub-9", SubmissionText: &text}}
		handler := NewSubmissionHandler(srv)
		c, rec := newTestContext(http.MethodPost, "/submit-assignment", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
		c.Request = httptest.NewRequest(http.MethodPost, "/submit-assignment", strings.NewReader(`{"assignment_id":"a-1","submission_text":"answer"}`))
		c.Request.Header.Set("Content-Type", "application/json")

		handler.SubmitAssignmentFallback(c)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "stu-1", srv.lastStudent)
		assert.Equal(t, "a-1", srv.lastReq.AssignmentID)
		var body dto.FallbackSubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		sub, ok := body.Submission.Get()
		require.True(t, ok)
		assert.Equal(t, "sub-9", sub.ID)
		assert.NotEmpty(t, body.Message)
	})

	t.Run("service error keeps status", func(t *testing.T) {
		srv := &fakeSubmissionSrv{privErr: appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")}
		handler := NewSubmissionHandler(srv)
		c, rec := newTestContext(http.MethodPost, "/submit-assignment", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
		c.Request = httptest.NewRequest(http.MethodPost, "/submit-assignment", strings.NewReader(`{"assignment_id":"a-1"}`))
		c.Request.Header.Set("Content-Type", "application/json")

		handler.SubmitAssignmentFallback(c)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var body dto.FallbackErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "you are not enrolled in this course", body.Error)
	})
}
