package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type enrollmentService interface {
	Request(ctx context.Context, studentID string, req dto.RequestEnrollmentRequest) (*models.EnrollmentRequest, error)
	ListRequests(ctx context.Context, query dto.EnrollmentRequestQuery) ([]models.EnrollmentRequestDetail, error)
	ListMine(ctx context.Context, studentID string) ([]models.EnrollmentRequest, error)
	Approve(ctx context.Context, adminID, requestID string) (*models.Enrollment, error)
	Reject(ctx context.Context, adminID, requestID string) error
	DeleteEnrollment(ctx context.Context, enrollmentID string) error
	CourseStudents(ctx context.Context, actor service.Actor, courseID string) ([]models.ProfileSummary, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// RequestEnrollment godoc
// @Summary Request enrollment in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.RequestEnrollmentRequest true "Enrollment request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentHandler) RequestEnrollment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RequestEnrollmentRequest
	if !bindJSON(c, &req, "invalid enrollment request") {
		return
	}
	created, err := h.enrollments.Request(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Mine godoc
// @Summary List my enrollment requests
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/mine [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	requests, err := h.enrollments.ListMine(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ListRequests godoc
// @Summary List enrollment requests
// @Tags Enrollments
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentHandler) ListRequests(c *gin.Context) {
	var query dto.EnrollmentRequestQuery
	if !bindQuery(c, &query) {
		return
	}
	requests, err := h.enrollments.ListRequests(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Approve godoc
// @Summary Approve an enrollment request
// @Tags Enrollments
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Approve(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Reject godoc
// @Summary Reject an enrollment request
// @Tags Enrollments
// @Param id path string true "Request ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.enrollments.Reject(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Remove a student from a course
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.DeleteEnrollment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CourseStudents godoc
// @Summary List students enrolled in a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/students [get]
func (h *EnrollmentHandler) CourseStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	students, err := h.enrollments.CourseStudents(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
