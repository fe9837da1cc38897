package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatusPayload(t *testing.T) {
	t.Run("creates session status payload", func(t *testing.T) {
		payload := SessionStatusPayload{
			BasePayload: BasePayload{Type: EventTypeSessionStatus, SessionID: "session-123", Timestamp: time.Now().Format(time.RFC3339Nano)},
			Status:      "started",
		}

		assert.Equal(t, EventTypeSessionStatus, payload.Type)
		assert.Equal(t, "session-123", payload.SessionID)
		assert.Equal(t, "started", payload.Status)
		assert.NotEmpty(t, payload.Timestamp)
	})

	t.Run("supports both lifecycle statuses", func(t *testing.T) {
		for _, status := range []string{"started", "ended"} {
			payload := SessionStatusPayload{
				BasePayload: BasePayload{Type: EventTypeSessionStatus, SessionID: "session-456", Timestamp: time.Now().Format(time.RFC3339Nano)},
				Status:      status,
			}
			assert.Equal(t, status, payload.Status)
		}
	})

	t.Run("round-trips through JSON", func(t *testing.T) {
		payload := SessionStatusPayload{
			BasePayload: BasePayload{
				Type:      EventTypeSessionStatus,
				SessionID: "session-789",
				Timestamp: "2026-02-10T12:00:00Z",
			},
			Status: "ended",
		}

		data, err := json.Marshal(payload)
		require.NoError(t, err)

		var decoded SessionStatusPayload
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, payload, decoded)
	})
}

func TestBasePayloadOmitsEmptyOptionalFields(t *testing.T) {
	data, err := json.Marshal(BasePayload{Type: "session.status"})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "session_id")
	assert.NotContains(t, string(data), "timestamp")
	assert.Contains(t, string(data), `"type":"session.status"`)
}
