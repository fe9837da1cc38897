package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// captureHandler handles POST /conversation/capture.
func (s *Server) captureHandler(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := s.ingestor.Capture(c.Request.Context(), ingest.CaptureInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Role:      req.MessageType,
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

// conversationsLastDMHandler handles GET /conversations/last_dm/:user_id.
func (s *Server) conversationsLastDMHandler(c *gin.Context) {
	userID := c.Param("user_id")
	convo, err := s.convos.LastDMForUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"found": false})
			return
		}
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "conversation": convo})
}
