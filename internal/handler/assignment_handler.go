package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/response"
)

type assignmentService interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	Create(ctx context.Context, actor service.Actor, req dto.CreateAssignmentRequest) (*models.Assignment, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.UpdateAssignmentRequest) (*models.Assignment, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	Submissions(ctx context.Context, actor service.Actor, assignmentID string, ungradedOnly bool) ([]models.SubmissionDetail, error)
	Grade(ctx context.Context, actor service.Actor, submissionID string, req dto.GradeSubmissionRequest, feedbackFile *dto.FileUpload) (*models.Submission, error)
	Gradebook(ctx context.Context, actor service.Actor, courseID string, format export.Format) ([]byte, string, error)
}

// AssignmentHandler manages coursework and grading.
type AssignmentHandler struct {
	assignments assignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments assignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// ListByCourse godoc
// @Summary List assignments of a course
// @Tags Assignments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/assignments [get]
func (h *AssignmentHandler) ListByCourse(c *gin.Context) {
	items, err := h.assignments.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	created, err := h.assignments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateAssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	updated, err := h.assignments.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete godoc
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.assignments.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submissions godoc
// @Summary List submissions of an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Param ungraded query bool false "Only submissions without a grade"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	ungraded, _ := strconv.ParseBool(c.Query("ungraded"))
	subs, err := h.assignments.Submissions(c.Request.Context(), actor, c.Param("id"), ungraded)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Description Multipart form with grade, optional feedback text and optional feedback_file.
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission ID"
// @Param grade formData number true "Grade between 0 and the assignment's max points"
// @Param feedback formData string false "Feedback text"
// @Param feedback_file formData file false "Feedback attachment"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/grade [put]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	grade, err := strconv.ParseFloat(strings.TrimSpace(c.PostForm("grade")), 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grade must be a number"))
		return
	}
	req := dto.GradeSubmissionRequest{Grade: grade}
	if feedback, ok := c.GetPostForm("feedback"); ok {
		req.Feedback = &feedback
	}

	file, closeFile, err := formFile(c, "feedback_file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	graded, err := h.assignments.Grade(c.Request.Context(), actor, c.Param("id"), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, graded)
}

// Gradebook godoc
// @Summary Export course gradebook
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /courses/{id}/gradebook [get]
func (h *AssignmentHandler) Gradebook(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf"))
		return
	}
	body, filename, err := h.assignments.Gradebook(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, format.ContentType(), body)
}
