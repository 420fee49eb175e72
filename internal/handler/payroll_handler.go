package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/response"
)

type payrollService interface {
	MarkComplete(ctx context.Context, teacherID, lectureID string) (*models.LectureAttendance, error)
	Approve(ctx context.Context, id string, req dto.ApproveTimesheetRequest) (*models.LectureAttendance, error)
	Reject(ctx context.Context, id string, req dto.RejectRequest) (*models.LectureAttendance, error)
	List(ctx context.Context, actor service.Actor, query dto.TimesheetQuery) ([]models.TimesheetEntry, error)
	Summary(ctx context.Context) ([]models.PayrollSummary, error)
	Export(ctx context.Context, actor service.Actor, query dto.TimesheetQuery) ([]byte, export.Format, string, error)
}

// PayrollHandler covers lecture completion and timesheet review.
type PayrollHandler struct {
	payroll payrollService
}

// NewPayrollHandler constructs PayrollHandler.
func NewPayrollHandler(payroll payrollService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll}
}

// MarkComplete godoc
// @Summary Mark a lecture as delivered
// @Description Creates or reopens the teacher's payroll record for the lecture. Fails with 409 when already completed or approved.
// @Tags Payroll
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lectures/{id}/complete [post]
func (h *PayrollHandler) MarkComplete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, err := h.payroll.MarkComplete(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// List godoc
// @Summary List timesheet entries
// @Description Teachers see their own entries only.
// @Tags Payroll
// @Produce json
// @Param status query string false "scheduled, completed, approved or rejected"
// @Param teacher_id query string false "Teacher filter (admin only)"
// @Success 200 {object} response.Envelope
// @Router /timesheets [get]
func (h *PayrollHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.TimesheetQuery
	if !bindQuery(c, &query) {
		return
	}
	entries, err := h.payroll.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Approve godoc
// @Summary Approve a completed lecture
// @Tags Payroll
// @Accept json
// @Produce json
// @Param id path string true "Timesheet entry ID"
// @Param payload body dto.ApproveTimesheetRequest false "Bonus"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/approve [post]
func (h *PayrollHandler) Approve(c *gin.Context) {
	var req dto.ApproveTimesheetRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	record, err := h.payroll.Approve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Reject godoc
// @Summary Reject a completed lecture
// @Tags Payroll
// @Accept json
// @Produce json
// @Param id path string true "Timesheet entry ID"
// @Param payload body dto.RejectRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timesheets/{id}/reject [post]
func (h *PayrollHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	if !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	record, err := h.payroll.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Summary godoc
// @Summary Payroll totals per teacher
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payroll/summary [get]
func (h *PayrollHandler) Summary(c *gin.Context) {
	rows, err := h.payroll.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Export godoc
// @Summary Export timesheet
// @Tags Payroll
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param teacher_id query string false "Teacher filter (admin only)"
// @Success 200 {file} file
// @Router /timesheets/export [get]
func (h *PayrollHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.TimesheetQuery
	if !bindQuery(c, &query) {
		return
	}
	body, format, filename, err := h.payroll.Export(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, format.ContentType(), body)
}
