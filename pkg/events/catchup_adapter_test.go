package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/omniwaifu/dere-sub005/test/database"
)

func publishStatus(t *testing.T, publisher *EventPublisher, sessionID, status string) {
	t.Helper()
	err := publisher.PublishSessionStatus(context.Background(), sessionID, SessionStatusPayload{
		BasePayload: BasePayload{
			Type:      EventTypeSessionStatus,
			SessionID: sessionID,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		},
		Status: status,
	})
	require.NoError(t, err)
}

func TestSQLCatchupQuerierReturnsEventsInOrder(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	db := dbClient.DB()
	ctx := context.Background()

	sessionID := uuid.NewString()
	channel := SessionChannel(sessionID)
	publisher := NewEventPublisher(db)
	publishStatus(t, publisher, sessionID, "started")
	publishStatus(t, publisher, sessionID, "ended")

	querier := NewSQLCatchupQuerier(db)
	events, err := querier.GetCatchupEvents(ctx, channel, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "started", events[0].Payload["status"])
	assert.Equal(t, "ended", events[1].Payload["status"])
	assert.Less(t, events[0].ID, events[1].ID)
}

func TestSQLCatchupQuerierRespectsSinceIDAndLimit(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	db := dbClient.DB()
	ctx := context.Background()

	sessionID := uuid.NewString()
	channel := SessionChannel(sessionID)
	publisher := NewEventPublisher(db)
	for i := 0; i < 3; i++ {
		publishStatus(t, publisher, sessionID, "started")
	}

	querier := NewSQLCatchupQuerier(db)
	all, err := querier.GetCatchupEvents(ctx, channel, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)

	sinceFirst, err := querier.GetCatchupEvents(ctx, channel, all[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, sinceFirst, 2)

	limited, err := querier.GetCatchupEvents(ctx, channel, 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLCatchupQuerierEmptyChannel(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	db := dbClient.DB()

	querier := NewSQLCatchupQuerier(db)
	events, err := querier.GetCatchupEvents(context.Background(), "session:nonexistent", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
