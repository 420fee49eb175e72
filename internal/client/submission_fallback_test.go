package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
)

func TestSubmissionFallbackSuccess(t *testing.T) {
	var gotAuth string
	var gotBody dto.FallbackSubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Assignment submitted","submission":{"id":"sub-9","student_id":"s1","assignment_id":"a1","submitted_at":"2024-05-01T10:00:00Z"}}`))
	}))
	defer srv.Close()

	text := "my answer"
	c := NewSubmissionFallback(srv.URL+"/", time.Second, nil, nil)
	resp, err := c.Submit(context.Background(), "tok", dto.FallbackSubmitRequest{AssignmentID: "a1", SubmissionText: &text})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "a1", gotBody.AssignmentID)
	assert.Equal(t, "my answer", *gotBody.SubmissionText)

	sub, ok := resp.Submission.Get()
	require.True(t, ok)
	assert.Equal(t, "sub-9", sub.ID)
}

func TestSubmissionFallbackErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Not enrolled in this course"}`))
	}))
	defer srv.Close()

	c := NewSubmissionFallback(srv.URL, time.Second, nil, nil)
	_, err := c.Submit(context.Background(), "tok", dto.FallbackSubmitRequest{AssignmentID: "a1"})
	require.Error(t, err)
	assert.Equal(t, "fallback returned 403: Not enrolled in this course", err.Error())
}

func TestSubmissionFallbackPlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewSubmissionFallback(srv.URL, time.Second, nil, nil)
	_, err := c.Submit(context.Background(), "", dto.FallbackSubmitRequest{AssignmentID: "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502: Bad Gateway")
}

func TestSubmissionFallbackRequiresEndpoint(t *testing.T) {
	c := NewSubmissionFallback("", 0, nil, nil)
	_, err := c.Submit(context.Background(), "tok", dto.FallbackSubmitRequest{})
	assert.Error(t, err)
}
