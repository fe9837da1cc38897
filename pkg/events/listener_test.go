package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNotifyListener(t *testing.T) {
	manager := NewConnectionManager(&mockCatchupQuerier{}, 0)
	listener := NewNotifyListener("host=localhost dbname=ambientd_test", manager)

	assert.NotNil(t, listener)
	assert.Equal(t, "host=localhost dbname=ambientd_test", listener.connString)
	assert.NotNil(t, listener.channels)
	assert.Equal(t, manager, listener.manager)
}

func TestNotifyListener_ChannelTrackingWithoutConnection(t *testing.T) {
	// Without calling Start(), the listener has no connection.
	// Subscribe/Unsubscribe should return errors gracefully.
	manager := NewConnectionManager(&mockCatchupQuerier{}, 0)
	listener := NewNotifyListener("host=localhost dbname=ambientd_test", manager)

	t.Run("subscribe without connection returns error", func(t *testing.T) {
		err := listener.Subscribe(t.Context(), SessionChannel("test-session"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not established")
	})

	t.Run("unsubscribe without connection is a no-op", func(t *testing.T) {
		err := listener.Unsubscribe(t.Context(), SessionChannel("test-session"))
		assert.NoError(t, err) // Not listening, so no-op
	})
}

func TestNotifyListener_NoRegisteredHandlerMechanism(t *testing.T) {
	// This daemon runs as one process, so there is no cross-process signal
	// to route through an internal handler registry — NotifyListener only
	// ever dispatches to the ConnectionManager it was built with.
	manager := NewConnectionManager(&mockCatchupQuerier{}, 0)
	listener := NewNotifyListener("host=localhost dbname=ambientd_test", manager)
	assert.Equal(t, manager, listener.manager)
}
