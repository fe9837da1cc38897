package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// searchHybridHandler handles POST /search/hybrid.
func (s *Server) searchHybridHandler(c *gin.Context) {
	var req SearchHybridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.graph == nil || !s.graph.GraphAvailable(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"facts": []any{}, "nodes": []any{}, "graph_available": false})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	facts, err := s.graph.HybridFactSearch(c.Request.Context(), req.Query, req.UserID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facts": facts, "graph_available": true})
}

// kgEntitiesHandler handles GET /kg/entities?limit&user_id.
func (s *Server) kgEntitiesHandler(c *gin.Context) {
	if s.graph == nil || !s.graph.GraphAvailable(c.Request.Context()) {
		c.JSON(http.StatusOK, gin.H{"entities": []any{}, "graph_available": false})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	userID := c.Query("user_id")

	nodes, err := s.graph.HybridNodeSearch(c.Request.Context(), "", userID, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": nodes, "graph_available": true})
}
