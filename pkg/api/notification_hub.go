package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var notifyUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// notifyMessage is one frame pushed to a connected frontend.
type notifyMessage struct {
	UserID string `json:"user_id"`
	Data   any    `json:"data"`
}

// NotificationHub fans ambient notification delivery events out to every
// connected websocket client, mirroring the teacher's WSHub (pkg/api's
// former session-processing broadcaster) generalized to the notification/
// presence delivery domain SPEC_FULL.md's DOMAIN STACK commits
// gorilla/websocket to.
type NotificationHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan notifyMessage
}

// NewNotificationHub constructs a hub. Run must be started in its own
// goroutine before HandleWS is used.
func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan notifyMessage, 256),
	}
}

// Run drains the hub's internal channels until ctx-like shutdown (the
// process exiting). Intended to run for the lifetime of the server.
func (h *NotificationHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					slog.Warn("notification hub write failed, dropping client", "error", err)
					go func(c *websocket.Conn) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues a notification payload for delivery to every connected
// client. The caller isn't told which clients actually belong to userID —
// narrowing delivery to the right frontend is the client's job, matching
// the teacher's all-clients broadcast model.
func (h *NotificationHub) Broadcast(userID string, data any) {
	h.broadcast <- notifyMessage{UserID: userID, Data: data}
}

// HandleWS upgrades an HTTP connection and registers it with the hub.
func (h *NotificationHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := notifyUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("notification websocket upgrade failed", "error", err)
		return
	}
	h.register <- conn

	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
