package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
	"github.com/noah-isme/lms-api/pkg/storage"
)

type objectOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

// FileHandler serves locally stored uploads behind signed URLs.
type FileHandler struct {
	store  objectOpener
	signer tokenVerifier
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(store objectOpener, signer tokenVerifier) *FileHandler {
	return &FileHandler{store: store, signer: signer}
}

// Serve godoc
// @Summary Download an uploaded file
// @Tags Files
// @Produce octet-stream
// @Param key path string true "Object key"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{key} [get]
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	if h.signer != nil {
		signed, err := h.signer.Verify(c.Query("token"))
		if err != nil || signed != key {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired file link"))
			return
		}
	}

	body, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}
