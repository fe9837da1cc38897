package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// sessionCreateHandler handles POST /sessions/create.
func (s *Server) sessionCreateHandler(c *gin.Context) {
	var req SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	sess := sessionFromRequest(req, now)
	if err := s.sessions.Create(c.Request.Context(), sess); err != nil {
		writeServiceError(c, err)
		return
	}
	s.publishSessionStatus(c.Request.Context(), sess.ID, "started", now)
	c.JSON(http.StatusOK, sess)
}

// sessionFindOrCreateHandler handles POST /sessions/find_or_create.
func (s *Server) sessionFindOrCreateHandler(c *gin.Context) {
	var req SessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	sess, err := s.sessions.EnsureSession(c.Request.Context(), sessionFromRequest(req, now))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// sessionEndHandler handles POST /sessions/:id/end.
func (s *Server) sessionEndHandler(c *gin.Context) {
	id := c.Param("id")
	now := time.Now().UTC()
	if err := s.sessions.Close(c.Request.Context(), id, now); err != nil {
		writeServiceError(c, err)
		return
	}
	s.publishSessionStatus(c.Request.Context(), id, "ended", now)
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

// publishSessionStatus broadcasts a session.status event for a lifecycle
// transition. Best-effort: with no publisher wired, or on a publish error,
// the session mutation that already committed is not rolled back — a
// missed event just means a connected client misses one timeline entry,
// not a lost session.
func (s *Server) publishSessionStatus(ctx context.Context, sessionID, status string, now time.Time) {
	if s.sessionEvents == nil {
		return
	}
	payload := events.SessionStatusPayload{
		BasePayload: events.BasePayload{
			Type:      events.EventTypeSessionStatus,
			SessionID: sessionID,
			Timestamp: now.Format(time.RFC3339Nano),
		},
		Status: status,
	}
	if err := s.sessionEvents.PublishSessionStatus(ctx, sessionID, payload); err != nil {
		slog.Warn("publish session status failed", "session_id", sessionID, "status", status, "error", err)
	}
}

// sessionClaudeSessionHandler handles POST /sessions/:id/claude_session,
// linking a session to the Claude Code CLI session driving it so a later
// resume can hand the CLI back its own session id.
func (s *Server) sessionClaudeSessionHandler(c *gin.Context) {
	id := c.Param("id")
	var req SessionClaudeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.sessions.SetClaudeSessionID(c.Request.Context(), id, req.ClaudeSessionID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "linked"})
}

// sessionMessageHandler handles POST /sessions/:id/message, a thin wrapper
// over the Conversation Ingestor scoped to a session already named by path.
func (s *Server) sessionMessageHandler(c *gin.Context) {
	id := c.Param("id")
	var req SessionMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := s.ingestor.Capture(c.Request.Context(), ingest.CaptureInput{
		SessionID: id,
		UserID:    req.UserID,
		Role:      req.Role,
		Prompt:    req.Prompt,
		Medium:    req.Medium,
		IsCommand: req.IsCommand,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CaptureResponse{Status: "stored", ConversationID: conversationID})
}

// sessionHistoryHandler handles GET /sessions/:id/history?limit=.
func (s *Server) sessionHistoryHandler(c *gin.Context) {
	id := c.Param("id")
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	turns, err := s.convos.RecentForSession(c.Request.Context(), id, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "turns": turns})
}

// sessionsContextHandler handles GET /sessions/context?session_id=.
func (s *Server) sessionsContextHandler(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	text, found, err := s.context.Get(c.Request.Context(), id, 0)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ContextGetResponse{Found: found, Context: text})
}

func sessionFromRequest(req SessionCreateRequest, now time.Time) *store.Session {
	sess := &store.Session{
		ID:           req.SessionID,
		UserID:       req.UserID,
		WorkingDir:   req.WorkingDir,
		StartTime:    now,
		LastActivity: now,
		Medium:       req.Medium,
		Personality:  req.Personality,
	}
	if req.MissionID != "" {
		sess.MissionID = &req.MissionID
	}
	return sess
}
