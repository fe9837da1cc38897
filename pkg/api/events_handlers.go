package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// eventsWSHandler upgrades to a websocket stream of timeline/session events
// (conversation capture, curiosity signals, sandbox errors), backed by
// events.ConnectionManager. Distinct from /notifications/ws, which streams
// ambient-notification delivery status via NotificationHub.
func (s *Server) eventsWSHandler(c *gin.Context) {
	if s.conns == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not available"})
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.conns.HandleConnection(c.Request.Context(), conn)
}
