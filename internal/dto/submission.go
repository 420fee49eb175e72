package dto

import (
	"io"

	"github.com/noah-isme/lms-api/internal/models"
)

// SubmissionPath names the write path that persisted a submission.
type SubmissionPath string

const (
	SubmissionPathDirect   SubmissionPath = "direct"
	SubmissionPathFallback SubmissionPath = "fallback"
)

// FileUpload is an attached file handed to a service.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// SubmitAssignmentInput is what a student sends to submit work.
type SubmitAssignmentInput struct {
	StudentID    string
	AssignmentID string
	Text         string
	File         *FileUpload
	// BearerToken is forwarded to the secondary endpoint when the direct write is refused.
	BearerToken string
}

// SubmissionResult reports how a submission was persisted.
type SubmissionResult struct {
	Submission     *models.Submission `json:"submission,omitempty"`
	Path           SubmissionPath     `json:"path"`
	Warnings       []string           `json:"warnings,omitempty"`
	UploadProgress []int              `json:"upload_progress,omitempty"`
}

// FallbackSubmitRequest is the body of the secondary submit-assignment endpoint.
type FallbackSubmitRequest struct {
	AssignmentID   string  `json:"assignment_id" validate:"required,uuid"`
	SubmissionText *string `json:"submission_text"`
	FileURL        *string `json:"file_url" validate:"omitempty,url"`
}

// FallbackSubmitResponse is returned by the secondary endpoint on success.
type FallbackSubmitResponse struct {
	Message    string                             `json:"message"`
	Submission models.Relation[models.Submission] `json:"submission"`
}

// FallbackErrorResponse is returned by the secondary endpoint on failure.
type FallbackErrorResponse struct {
	Error string `json:"error"`
}
