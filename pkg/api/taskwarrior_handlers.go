package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// taskwarriorTasksHandler handles GET /taskwarrior/tasks?status&include_completed.
func (s *Server) taskwarriorTasksHandler(c *gin.Context) {
	if s.taskwarrior == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "taskwarrior not configured"})
		return
	}
	status := c.Query("status")
	includeCompleted := c.Query("include_completed") == "true"

	tasks, err := s.taskwarrior.Tasks(c.Request.Context(), status, includeCompleted)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
