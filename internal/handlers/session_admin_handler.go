package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/cleanup"

	"github.com/gin-gonic/gin"
)

type SessionAdminHandler struct {
	scheduler *cleanup.Scheduler
}

func NewSessionAdminHandler(scheduler *cleanup.Scheduler) *SessionAdminHandler {
	return &SessionAdminHandler{scheduler: scheduler}
}

type cleanupRequest struct {
	InactivityMinutes int `json:"inactivity_minutes"`
}

// CleanupSessions triggers an out-of-band sweep, independent of the
// scheduler's own interval.
func (h *SessionAdminHandler) CleanupSessions(c *gin.Context) {
	var req cleanupRequest
	_ = c.ShouldBindJSON(&req)

	threshold := 30 * time.Minute
	if req.InactivityMinutes > 0 {
		threshold = time.Duration(req.InactivityMinutes) * time.Minute
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	evicted, err := h.scheduler.CleanupInactiveSessions(ctx, threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}
