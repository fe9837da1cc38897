package events

// BasePayload carries the fields every event payload needs so a client can
// route and display it without type-specific parsing: what kind of event it
// is, which session it belongs to, and when it happened.
type BasePayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339Nano
}

// SessionStatusPayload is the payload for session.status events, published
// when a session starts or ends (see sessionCreateHandler/sessionEndHandler).
type SessionStatusPayload struct {
	BasePayload
	Status string `json:"status"` // "started" or "ended"
}
