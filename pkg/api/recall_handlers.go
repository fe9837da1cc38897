package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// recallSearchHandler handles GET /recall/search?query&limit&days_back&session_id&user_id.
// Facts come from the knowledge graph's hybrid search when wired; otherwise
// it degrades to the session's unsurfaced exploration findings.
func (s *Server) recallSearchHandler(c *gin.Context) {
	query := c.Query("query")
	userID := c.Query("user_id")
	sessionID := c.Query("session_id")
	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	if s.graph != nil && query != "" && s.graph.GraphAvailable(c.Request.Context()) {
		facts, err := s.graph.HybridFactSearch(c.Request.Context(), query, userID, limit)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"facts": facts})
		return
	}

	findings, err := s.findings.UnsurfacedForSession(c.Request.Context(), userID, sessionID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings})
}

// recallSurfaceHandler handles POST /recall/findings/surface.
func (s *Server) recallSurfaceHandler(c *gin.Context) {
	var req FindingSurfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.findings.MarkSurfaced(c.Request.Context(), req.FindingID, req.SessionID, time.Now().UTC()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "surfaced"})
}
