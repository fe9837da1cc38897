package curiosity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/curiosity"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCuriosityCorrectionSignalCreatesReadyTask(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()
	sessionID := uuid.NewString()

	now := time.Now().UTC()
	require.NoError(t, store.NewSessionStore(client.DB()).Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID, StartTime: now, LastActivity: now,
	}))

	convos := store.NewConversationStore(client.DB())
	assistantID := uuid.NewString()
	require.NoError(t, convos.Create(t.Context(), &store.Conversation{
		ID: assistantID, SessionID: sessionID, Role: "assistant",
		Prompt: "The capital of Australia is Sydney.", OccurredAt: now,
	}))

	// The graph already knows both cities, so the correction is the turn's
	// only signal; the user turn is stored first, as the ingestor does.
	g := graph.NewMemoryAdapter()
	g.SeedNode(graph.Node{UUID: uuid.NewString(), Name: "Canberra"})
	g.SeedNode(graph.Node{UUID: uuid.NewString(), Name: "Sydney"})
	pipeline := curiosity.New(client.DB(), g, nil, curiosity.DefaultConfig())

	correctionText := "No, actually it's Canberra, not Sydney."
	require.NoError(t, convos.Create(t.Context(), &store.Conversation{
		ID: uuid.NewString(), SessionID: sessionID, Role: "user",
		Prompt: correctionText, OccurredAt: now.Add(time.Second),
	}))

	err := pipeline.EvaluateTurn(t.Context(), sessionID, userID, "user",
		correctionText, false, now.Add(time.Second))
	require.NoError(t, err)

	tasks := store.NewProjectTaskStore(client.DB())
	pending, err := tasks.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "curiosity", pending[0].TaskType)
	assert.Equal(t, store.TaskStatusReady, pending[0].Status)
	assert.Greater(t, pending[0].Priority, 0)
}

func TestCuriosityRepeatSignalBumpsPriorityMonotonically(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()
	sessionID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, store.NewSessionStore(client.DB()).Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID, StartTime: now, LastActivity: now,
	}))

	g := graph.NewMemoryAdapter()
	g.SeedNode(graph.Node{UUID: uuid.NewString(), Name: "Canberra"})
	g.SeedNode(graph.Node{UUID: uuid.NewString(), Name: "Sydney"})
	pipeline := curiosity.New(client.DB(), g, nil, curiosity.DefaultConfig())

	correctionText := "No, actually it's Canberra, not Sydney."
	convos := store.NewConversationStore(client.DB())

	seedAssistantTurn := func(at time.Time) {
		require.NoError(t, convos.Create(t.Context(), &store.Conversation{
			ID: uuid.NewString(), SessionID: sessionID, Role: "assistant",
			Prompt: "The capital is Sydney.", OccurredAt: at,
		}))
	}
	seedUserTurn := func(at time.Time) {
		require.NoError(t, convos.Create(t.Context(), &store.Conversation{
			ID: uuid.NewString(), SessionID: sessionID, Role: "user",
			Prompt: correctionText, OccurredAt: at,
		}))
	}

	seedAssistantTurn(now)
	seedUserTurn(now.Add(time.Second))
	require.NoError(t, pipeline.EvaluateTurn(t.Context(), sessionID, userID, "user", correctionText, false, now.Add(time.Second)))

	tasks := store.NewProjectTaskStore(client.DB())
	first, err := tasks.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	firstPriority := first[0].Priority

	seedAssistantTurn(now.Add(time.Minute))
	seedUserTurn(now.Add(2 * time.Minute))
	require.NoError(t, pipeline.EvaluateTurn(t.Context(), sessionID, userID, "user", correctionText, false, now.Add(2*time.Minute)))

	second, err := tasks.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, second, 1, "repeat signal must upsert, not create a second task")
	assert.GreaterOrEqual(t, second[0].Priority, firstPriority, "priority must never decrease on re-trigger")
}

func TestCuriosityCommandTurnsStillRunDetectorsWhenCalledDirectly(t *testing.T) {
	// EvaluateTurn itself has no isCommand gate — that suppression lives in
	// pkg/ingest, which chooses not to call EvaluateTurn at all for
	// isCommand && role == user turns. This test only documents that
	// EvaluateTurn is a plain detector pass with no hidden command check.
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()
	sessionID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, store.NewSessionStore(client.DB()).Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID, StartTime: now, LastActivity: now,
	}))

	pipeline := curiosity.New(client.DB(), nil, nil, curiosity.DefaultConfig())
	err := pipeline.EvaluateTurn(t.Context(), sessionID, userID, "user", "I HATE THIS!!! absolutely furious", true, now)
	require.NoError(t, err)

	tasks := store.NewProjectTaskStore(client.DB())
	pending, err := tasks.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "emotional_peak detector still fires on direct EvaluateTurn calls")
}
