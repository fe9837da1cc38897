package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusGetHandler handles POST /status/get.
func (s *Server) statusGetHandler(c *gin.Context) {
	var req StatusGetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := s.queue.Stats(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusGetResponse{
		Daemon: "running",
		Queue: map[string]int{
			"pending":    stats.ByStatus["pending"],
			"processing": stats.ByStatus["processing"],
			"completed":  stats.ByStatus["completed"],
			"failed":     stats.ByStatus["failed"],
		},
	})
}
