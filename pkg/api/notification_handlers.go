package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// notificationsRecentHandler handles POST /notifications/recent_unacknowledged.
func (s *Server) notificationsRecentHandler(c *gin.Context) {
	var req NotificationsRecentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notifications, err := s.notifs.ListPendingForUser(c.Request.Context(), req.UserID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// notificationsWSHandler upgrades to a websocket stream of ambient
// notification delivery events, backed by NotificationHub.
func (s *Server) notificationsWSHandler(c *gin.Context) {
	if s.notifyHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notification stream not available"})
		return
	}
	s.notifyHub.HandleWS(c.Writer, c.Request)
}

// deliverAndBroadcast marks a notification delivered and pushes it onto the
// websocket hub, if one is wired. Called from the presence/notification
// delivery path, not from an HTTP handler.
func (s *Server) deliverAndBroadcast(notificationID, userID string, payload any, now time.Time) error {
	if err := s.notifs.MarkDelivered(context.Background(), notificationID, now); err != nil {
		return err
	}
	if s.notifyHub != nil {
		s.notifyHub.Broadcast(userID, payload)
	}
	return nil
}
