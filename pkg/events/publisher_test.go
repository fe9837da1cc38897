package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(SessionStatusPayload{
			BasePayload: BasePayload{
				Type:      EventTypeSessionStatus,
				SessionID: "abc-123",
			},
			Status: "started",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, EventTypeSessionStatus)
		assert.Contains(t, result, "abc-123")
	})

	t.Run("truncates oversized payload", func(t *testing.T) {
		envelope := struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Data      string `json:"data"`
		}{
			Type:      "curiosity.finding",
			SessionID: "abc-123",
			Data:      string(make([]byte, 8000)),
		}
		payload, _ := json.Marshal(envelope)

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, "truncated")
		assert.Less(t, len(result), 8000)
	})

	t.Run("does not truncate small payload", func(t *testing.T) {
		payload, _ := json.Marshal(SessionStatusPayload{
			BasePayload: BasePayload{Type: EventTypeSessionStatus},
			Status:      "ended",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("truncated payload preserves key fields", func(t *testing.T) {
		envelope := struct {
			Type      string `json:"type"`
			EventID   string `json:"event_id"`
			SessionID string `json:"session_id"`
			Data      string `json:"data"`
		}{
			Type:      "curiosity.finding",
			EventID:   "evt-456",
			SessionID: "sess-789",
			Data:      string(make([]byte, 8000)),
		}
		payload, _ := json.Marshal(envelope)

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)

		assert.Contains(t, result, "curiosity.finding")
		assert.Contains(t, result, "evt-456")
		assert.Contains(t, result, "sess-789")
		assert.Contains(t, result, `"truncated":true`)
	})

	t.Run("boundary: payload just under limit is not truncated", func(t *testing.T) {
		// Build a payload whose JSON is just under 7900 bytes. Marshal an empty
		// struct first to measure the overhead of the struct's fixed fields
		// (keys, quotes, separators). The 20-byte safety margin accounts for
		// JSON encoding variability: if new fields with non-zero defaults are
		// added to SessionStatusPayload, the base overhead grows and the
		// margin prevents the test from flipping unexpectedly.
		base, _ := json.Marshal(SessionStatusPayload{BasePayload: BasePayload{Type: "t"}})
		contentSize := 7900 - len(base) - 20
		content := make([]byte, contentSize)
		for i := range content {
			content[i] = 'b'
		}
		payload, _ := json.Marshal(struct {
			SessionStatusPayload
			Padding string `json:"padding"`
		}{
			SessionStatusPayload: SessionStatusPayload{BasePayload: BasePayload{Type: "t"}},
			Padding:              string(content),
		})
		require.LessOrEqual(t, len(payload), 7900, "test payload should be under limit")

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("empty JSON object", func(t *testing.T) {
		result, err := truncateIfNeeded("{}")
		require.NoError(t, err)
		assert.Equal(t, "{}", result)
	})
}

func TestInjectDBEventIDAndTruncate(t *testing.T) {
	t.Run("injects db_event_id into normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(SessionStatusPayload{
			BasePayload: BasePayload{
				Type:      EventTypeSessionStatus,
				SessionID: "sess-1",
			},
			Status: "started",
		})

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "sess-1")
	})

	t.Run("truncated payload preserves db_event_id", func(t *testing.T) {
		envelope := struct {
			Type      string `json:"type"`
			EventID   string `json:"event_id"`
			SessionID string `json:"session_id"`
			Data      string `json:"data"`
		}{
			Type:      "curiosity.finding",
			EventID:   "evt-456",
			SessionID: "sess-789",
			Data:      string(make([]byte, 8000)),
		}
		payload, _ := json.Marshal(envelope)

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "evt-456")
	})

	t.Run("truncated payload without session_id keeps truncated flag and db_event_id", func(t *testing.T) {
		envelope := struct {
			Type    string `json:"type"`
			EventID string `json:"event_id"`
			Data    string `json:"data"`
		}{
			Type:    "sandbox.error",
			EventID: "evt-789",
			Data:    string(make([]byte, 8000)),
		}
		payload, _ := json.Marshal(envelope)

		result, err := injectDBEventIDAndTruncate(payload, 99)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":99`)
	})
}

func TestNewEventPublisher(t *testing.T) {
	publisher := NewEventPublisher(nil)
	assert.NotNil(t, publisher)
	assert.Nil(t, publisher.db)
}
