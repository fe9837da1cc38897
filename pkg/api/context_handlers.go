package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxpkg "github.com/omniwaifu/dere-sub005/pkg/context"
)

// contextBuildHandler handles POST /context/build.
func (s *Server) contextBuildHandler(c *gin.Context) {
	var req ContextBuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := s.context.Build(c.Request.Context(), ctxpkg.BuildInput{
		SessionID:            req.SessionID,
		ProjectPath:          req.ProjectPath,
		UserID:               req.UserID,
		ContextDepth:         req.ContextDepth,
		IncludeCitations:     req.IncludeCitations,
		CitationLimitPerEdge: req.CitationLimitPerEdge,
		CitationMaxChars:     req.CitationMaxChars,
		CurrentPrompt:        req.CurrentPrompt,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ContextBuildResponse{Status: "built", Context: text})
}

// contextGetHandler handles POST /context/get.
func (s *Server) contextGetHandler(c *gin.Context) {
	var req ContextGetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxAge := ctxpkg.DefaultMaxAge
	if req.MaxAgeMinutes > 0 {
		maxAge = time.Duration(req.MaxAgeMinutes) * time.Minute
	}

	text, found, err := s.context.Get(c.Request.Context(), req.SessionID, maxAge)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ContextGetResponse{Found: found, Context: text})
}

// contextSessionStartHandler handles POST /context/build_session_start.
func (s *Server) contextSessionStartHandler(c *gin.Context) {
	var req ContextSessionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionType := ctxpkg.DetectSessionType(req.Medium, req.WorkingDir)

	text, err := s.context.Build(c.Request.Context(), ctxpkg.BuildInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := ContextBuildResponse{Status: "built", Context: text, SessionType: string(sessionType)}
	if sessionType == ctxpkg.SessionTypeCode {
		resp.ProjectName = ctxpkg.ProjectName(req.WorkingDir)
	}
	c.JSON(http.StatusOK, resp)
}
