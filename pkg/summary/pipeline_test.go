package summary_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/database"
	"github.com/omniwaifu/dere-sub005/pkg/llm"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/summary"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIdleSessionWithMessages(t *testing.T, client *database.Client, userID, sessionID string, now time.Time, n int) {
	t.Helper()
	sessions := store.NewSessionStore(client.DB())
	require.NoError(t, sessions.Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID,
		StartTime: now.Add(-time.Hour), LastActivity: now.Add(-45 * time.Minute),
	}))

	convos := store.NewConversationStore(client.DB())
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, convos.Create(t.Context(), &store.Conversation{
			ID: uuid.NewString(), SessionID: sessionID, Role: role,
			Prompt: "message", OccurredAt: now.Add(-time.Duration(n-i) * time.Minute),
		}))
	}
}

func TestRunOnceSummarizesIdleSessionWithEnoughMessages(t *testing.T) {
	client := testdb.NewTestClient(t)
	now := time.Now().UTC()
	userID, sessionID := uuid.NewString(), uuid.NewString()
	seedIdleSessionWithMessages(t, client, userID, sessionID, now, 6)

	adapter := llm.NewStub()
	adapter.TextResult = "The user discussed their travel plans."

	loop := summary.New(client.DB(), adapter, summary.DefaultConfig())
	result, err := loop.RunOnce(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SessionsSummarized)
	assert.True(t, result.RollingUpdated)
	assert.Equal(t, 1, result.CoreMemoryUpdated)

	sess, err := store.NewSessionStore(client.DB()).Get(t.Context(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, sess.Summary)
	assert.Equal(t, "The user discussed their travel plans.", *sess.Summary)

	memory := store.NewCoreMemoryStore(client.DB())
	block, err := memory.GetOrCreateUserBlock(t.Context(), client.DB(), userID, "task", 8192, now)
	require.NoError(t, err)
	assert.Contains(t, block.Content, "Recent summary:")
}

func TestRunOnceSkipsSessionBelowMessageFloor(t *testing.T) {
	client := testdb.NewTestClient(t)
	now := time.Now().UTC()
	userID, sessionID := uuid.NewString(), uuid.NewString()
	seedIdleSessionWithMessages(t, client, userID, sessionID, now, 2)

	loop := summary.New(client.DB(), llm.NewStub(), summary.DefaultConfig())
	result, err := loop.RunOnce(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SessionsSummarized)

	sess, err := store.NewSessionStore(client.DB()).Get(t.Context(), sessionID)
	require.NoError(t, err)
	assert.Nil(t, sess.Summary)
}

func TestRunOnceSkipsSessionsNotYetIdle(t *testing.T) {
	client := testdb.NewTestClient(t)
	now := time.Now().UTC()
	userID, sessionID := uuid.NewString(), uuid.NewString()

	sessions := store.NewSessionStore(client.DB())
	require.NoError(t, sessions.Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID,
		StartTime: now.Add(-time.Hour), LastActivity: now.Add(-5 * time.Minute),
	}))
	convos := store.NewConversationStore(client.DB())
	for i := 0; i < 6; i++ {
		require.NoError(t, convos.Create(t.Context(), &store.Conversation{
			ID: uuid.NewString(), SessionID: sessionID, Role: "user",
			Prompt: "message", OccurredAt: now,
		}))
	}

	loop := summary.New(client.DB(), llm.NewStub(), summary.DefaultConfig())
	result, err := loop.RunOnce(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SessionsSummarized)
}
