package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, in dto.SubmitAssignmentInput) (*dto.SubmissionResult, error)
	SubmitPrivileged(ctx context.Context, studentID string, req dto.FallbackSubmitRequest) (*models.Submission, error)
	ListMine(ctx context.Context, studentID string) ([]models.Submission, error)
}

// SubmissionHandler accepts student work.
type SubmissionHandler struct {
	submissions submissionService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions submissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Submit godoc
// @Summary Submit an assignment
// @Description Multipart form with submission_text and/or file. Resubmitting replaces the earlier work.
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assignment ID"
// @Param submission_text formData string false "Answer text"
// @Param file formData file false "Attachment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assignments/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, closeFile, err := formFile(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	result, err := h.submissions.Submit(c.Request.Context(), dto.SubmitAssignmentInput{
		StudentID:    actor.ID,
		AssignmentID: c.Param("id"),
		Text:         c.PostForm("submission_text"),
		File:         file,
		BearerToken:  middleware.AccessToken(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "submission_path", result.Path)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Mine godoc
// @Summary List my submissions
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/mine [get]
func (h *SubmissionHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	subs, err := h.submissions.ListMine(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// SubmitAssignmentFallback godoc
// @Summary Secondary submission endpoint
// @Description Privileged write used when the primary path is refused. Answers with a bare {message, submission} or {error} body.
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.FallbackSubmitRequest true "Submission"
// @Success 200 {object} dto.FallbackSubmitResponse
// @Failure 400 {object} dto.FallbackErrorResponse
// @Failure 401 {object} dto.FallbackErrorResponse
// @Router /submit-assignment [post]
func (h *SubmissionHandler) SubmitAssignmentFallback(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		fallbackError(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.FallbackSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fallbackError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	sub, err := h.submissions.SubmitPrivileged(c.Request.Context(), claims.UserID, req)
	if err != nil {
		fallbackError(c, err)
		return
	}
	resp := dto.FallbackSubmitResponse{Message: "assignment submitted"}
	if sub != nil {
		resp.Submission = models.Some(*sub)
	}
	c.JSON(http.StatusOK, resp)
}

func fallbackError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.AbortWithStatusJSON(appErr.Status, dto.FallbackErrorResponse{Error: appErr.Message})
}

// formFile opens an optional multipart file. The returned closer is always safe to call.
func formFile(c *gin.Context, field string) (*dto.FileUpload, func(), error) {
	noop := func() {}
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*dto.FileUpload, func(), error) {
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read uploaded file")
	}
	return &dto.FileUpload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}
