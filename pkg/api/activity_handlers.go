package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// activityStateHandler handles GET /activity/state?minutes&top, reporting a
// user's derived engagement state and current activity streak. minutes and
// top are accepted for API compatibility but have no effect: the
// orchestrator only tracks the current (app, title) streak, not a
// historical log to window or rank over.
func (s *Server) activityStateHandler(c *gin.Context) {
	if s.orch == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity tracking not available"})
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	view, err := s.orch.ActivityState(c.Request.Context(), userID, time.Now().UTC())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":          view.State,
		"app":            view.App,
		"title":          view.Title,
		"streak_seconds": view.StreakSeconds,
		"has_activity":   view.HasActivity,
	})
}
