package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// emotionSummaryHandler handles GET /emotion/summary?user_id&minutes, a
// rolling aggregate of a user's recent buffered emotional stimuli.
func (s *Server) emotionSummaryHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	minutes := 24 * 60
	if v := c.Query("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}

	summary, err := s.emotion.Summary(c.Request.Context(), userID, time.Now().UTC().Add(-time.Duration(minutes)*time.Minute))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
