// Package sandbox consumes the event stream emitted by out-of-process
// sandbox runners (tool execution happens outside this daemon entirely) and
// folds it into conversation history. The runner itself — process spawn,
// SIGTERM teardown, temp workspace lifecycle — is out of scope; this package
// only speaks the wire contract and reacts to it.
package sandbox

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates the narrow set of event kinds the core understands.
// Anything else arriving on the stream is ignored by Bridge.Open's caller.
type EventType string

const (
	EventReady      EventType = "ready"
	EventSessionID  EventType = "session_id"
	EventText       EventType = "text"
	EventToolUse    EventType = "tool_use"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one item on a sandbox runner's event stream.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SessionIDData is Data for an EventSessionID event.
type SessionIDData struct {
	SessionID string `json:"session_id"`
}

// TextData is Data for an EventText event.
type TextData struct {
	Content string `json:"content"`
}

// ToolUseData is Data for an EventToolUse event.
type ToolUseData struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
	ID    string          `json:"id,omitempty"`
}

// ToolResultData is Data for an EventToolResult event.
type ToolResultData struct {
	ToolUseID string `json:"tool_use_id,omitempty"`
	Output    string `json:"output"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ErrorData is Data for an EventError event.
type ErrorData struct {
	Message string `json:"message"`
}

// unmarshal decodes an event's Data payload into a typed struct.
func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("sandbox: unmarshal event data into %T: %w", v, err)
	}
	return nil
}

// toMap decodes a raw tool-input payload into the opaque map shape the
// store's JSONB columns expect, per the "dynamic JSON columns" convention:
// access goes through accessors, never a static type.
func toMap(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sandbox: decode tool input: %w", err)
	}
	return m, nil
}

// mustJSON marshals a known-good local value; any failure here would be a
// programming error in this package, not something callers can recover from.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("sandbox: marshal %T: %v", v, err))
	}
	return b
}
