package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// missionCreateHandler handles POST /missions.
func (s *Server) missionCreateHandler(c *gin.Context) {
	var req MissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := &store.Mission{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Status:      "active",
		Config:      req.Config,
	}
	if req.RepoOwner != "" {
		m.RepoOwner = &req.RepoOwner
	}
	if req.RepoName != "" {
		m.RepoName = &req.RepoName
	}
	if req.IssueNumber != 0 {
		m.IssueNumber = &req.IssueNumber
	}

	id, err := s.missions.Create(c.Request.Context(), m)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// missionListHandler handles GET /missions?user_id=.
func (s *Server) missionListHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	missions, err := s.missions.ListActiveForUser(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missions": missions})
}

// missionGetHandler handles GET /missions/:id.
func (s *Server) missionGetHandler(c *gin.Context) {
	m, err := s.missions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// missionPauseHandler handles POST /missions/:id/pause.
func (s *Server) missionPauseHandler(c *gin.Context) {
	if err := s.missions.Pause(c.Request.Context(), c.Param("id"), time.Now().UTC()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// missionResumeHandler handles POST /missions/:id/resume.
func (s *Server) missionResumeHandler(c *gin.Context) {
	if err := s.missions.Resume(c.Request.Context(), c.Param("id"), time.Now().UTC()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

// missionArchiveHandler handles POST /missions/:id/archive.
func (s *Server) missionArchiveHandler(c *gin.Context) {
	if err := s.missions.Archive(c.Request.Context(), c.Param("id"), time.Now().UTC()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}

// missionExecutionStartHandler handles POST /missions/:id/executions.
func (s *Server) missionExecutionStartHandler(c *gin.Context) {
	var req MissionExecutionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sessionID *string
	if req.SessionID != "" {
		sessionID = &req.SessionID
	}
	execID, err := s.missions.StartExecution(c.Request.Context(), c.Param("id"), sessionID, req.Trigger, time.Now().UTC())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution_id": execID})
}

// missionExecutionListHandler handles GET /missions/:id/executions?limit=.
func (s *Server) missionExecutionListHandler(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	execs, err := s.missions.ListRecentExecutions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}
