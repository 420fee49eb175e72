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

type lectureService interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.LectureWithRecording, error)
	Create(ctx context.Context, actor service.Actor, req dto.CreateLectureRequest) (*models.Lecture, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.UpdateLectureRequest) (*models.Lecture, error)
	Delete(ctx context.Context, actor service.Actor, id string, confirm bool) error
	AttachRecording(ctx context.Context, actor service.Actor, lectureID string, req dto.AttachRecordingRequest) (*models.RecordedLecture, error)
	RecordAttendance(ctx context.Context, actor service.Actor, lectureID string, req dto.RecordAttendanceRequest) ([]models.StudentAttendance, error)
	Attendance(ctx context.Context, actor service.Actor, lectureID string) ([]models.StudentAttendance, error)
}

// LectureHandler manages lectures, recordings and student attendance.
type LectureHandler struct {
	lectures lectureService
}

// NewLectureHandler constructs LectureHandler.
func NewLectureHandler(lectures lectureService) *LectureHandler {
	return &LectureHandler{lectures: lectures}
}

// ListByCourse godoc
// @Summary List lectures of a course
// @Description Lectures come with their recording when one is attached.
// @Tags Lectures
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/lectures [get]
func (h *LectureHandler) ListByCourse(c *gin.Context) {
	lectures, err := h.lectures.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, nil)
}

// Create godoc
// @Summary Schedule lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body dto.CreateLectureRequest true "Lecture"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateLectureRequest
	if !bindJSON(c, &req, "invalid lecture payload") {
		return
	}
	lecture, err := h.lectures.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// Update godoc
// @Summary Update lecture
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body dto.UpdateLectureRequest true "Lecture"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id} [put]
func (h *LectureHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateLectureRequest
	if !bindJSON(c, &req, "invalid lecture payload") {
		return
	}
	lecture, err := h.lectures.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lecture)
}

// Delete godoc
// @Summary Delete lecture
// @Tags Lectures
// @Param id path string true "Lecture ID"
// @Param confirm query bool true "Confirm deletion"
// @Success 204
// @Failure 428 {object} response.Envelope
// @Router /lectures/{id} [delete]
func (h *LectureHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.lectures.Delete(c.Request.Context(), actor, c.Param("id"), confirmed(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AttachRecording godoc
// @Summary Attach or replace the lecture recording
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body dto.AttachRecordingRequest true "Recording"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/recording [put]
func (h *LectureHandler) AttachRecording(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AttachRecordingRequest
	if !bindJSON(c, &req, "invalid recording payload") {
		return
	}
	rec, err := h.lectures.AttachRecording(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// RecordAttendance godoc
// @Summary Record student attendance
// @Tags Lectures
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body dto.RecordAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/attendance [put]
func (h *LectureHandler) RecordAttendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	records, err := h.lectures.RecordAttendance(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Attendance godoc
// @Summary List student attendance for a lecture
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /lectures/{id}/attendance [get]
func (h *LectureHandler) Attendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	records, err := h.lectures.Attendance(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
