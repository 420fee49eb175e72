package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type profileService interface {
	ListTeachers(ctx context.Context, query dto.ProfileQuery, pendingOnly bool) ([]models.Profile, *models.Pagination, error)
	ListStudents(ctx context.Context, query dto.ProfileQuery) ([]models.Profile, *models.Pagination, error)
	ApproveTeacher(ctx context.Context, id string) (*models.Profile, error)
	RejectTeacher(ctx context.Context, id string, confirm bool) error
}

// ProfileHandler backs the admin people panels.
type ProfileHandler struct {
	profiles profileService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles profileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Teachers godoc
// @Summary List teachers
// @Tags Admin
// @Produce json
// @Param pending query bool false "Only teachers awaiting approval"
// @Param search query string false "Name or email search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/teachers [get]
func (h *ProfileHandler) Teachers(c *gin.Context) {
	var query dto.ProfileQuery
	if !bindQuery(c, &query) {
		return
	}
	pending, _ := strconv.ParseBool(c.Query("pending"))
	teachers, pagination, err := h.profiles.ListTeachers(c.Request.Context(), query, pending)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Students godoc
// @Summary List students
// @Tags Admin
// @Produce json
// @Param search query string false "Name or email search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/students [get]
func (h *ProfileHandler) Students(c *gin.Context) {
	var query dto.ProfileQuery
	if !bindQuery(c, &query) {
		return
	}
	students, pagination, err := h.profiles.ListStudents(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// ApproveTeacher godoc
// @Summary Approve teacher account
// @Tags Admin
// @Param id path string true "Profile ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/teachers/{id}/approve [post]
func (h *ProfileHandler) ApproveTeacher(c *gin.Context) {
	profile, err := h.profiles.ApproveTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// RejectTeacher godoc
// @Summary Reject and delete a pending teacher
// @Tags Admin
// @Param id path string true "Profile ID"
// @Param confirm query bool true "Confirm deletion"
// @Success 204
// @Failure 428 {object} response.Envelope
// @Router /admin/teachers/{id} [delete]
func (h *ProfileHandler) RejectTeacher(c *gin.Context) {
	if err := h.profiles.RejectTeacher(c.Request.Context(), c.Param("id"), confirmed(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
