package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type invalidationSource interface {
	Subscribe() (<-chan service.Invalidation, func())
}

// EventHandler streams cache invalidations so clients refetch only stale views.
type EventHandler struct {
	hub       invalidationSource
	heartbeat time.Duration
}

// NewEventHandler constructs EventHandler. heartbeat <= 0 defaults to 25s.
func NewEventHandler(hub invalidationSource, heartbeat time.Duration) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventHandler{hub: hub, heartbeat: heartbeat}
}

// Stream godoc
// @Summary Invalidation event stream
// @Description Server-sent events, one "invalidate" event per stale tag visible to the caller.
// @Tags Events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, cancel := h.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			if visibleTo(claims, event.Tag) {
				c.SSEvent("invalidate", event)
			}
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

// visibleTo keeps one user's events away from everyone else. Admins see all.
func visibleTo(claims *models.JWTClaims, tag string) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return tag == service.TeacherTag(claims.UserID)
	default:
		return tag == service.StudentTag(claims.UserID)
	}
}
