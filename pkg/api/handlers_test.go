package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniwaifu/dere-sub005/pkg/api"
	ctxpkg "github.com/omniwaifu/dere-sub005/pkg/context"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/mission"
	"github.com/omniwaifu/dere-sub005/pkg/presence"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/tasks"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
)

func newTestServer(t *testing.T) (*api.Server, *store.SessionStore) {
	t.Helper()
	client := testdb.NewTestClient(t)
	db := client.DB()

	ingestor := ingest.New(db, graph.NewMemoryAdapter(), nil, nil, nil)
	builder := ctxpkg.New(store.NewConversationStore(db), store.NewContextCacheStore(db), graph.NewMemoryAdapter())
	missions := mission.New(store.NewMissionStore(db), nil)
	queue := tasks.New(db, tasks.DefaultConfig())
	presenceSvc := presence.New(db)

	s := api.NewServer(db, ingestor, builder, missions, queue, presenceSvc)
	require.NoError(t, s.ValidateWiring())
	return s, store.NewSessionStore(db)
}

func doJSON(t *testing.T, s *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCaptureThenContextBuildAndGetRoundTrip(t *testing.T) {
	s, sessions := newTestServer(t)
	sessionID := uuid.NewString()
	userID := uuid.NewString()
	now := time.Now().UTC()

	require.NoError(t, sessions.Create(t.Context(), &store.Session{
		ID: sessionID, UserID: userID, StartTime: now, LastActivity: now, Medium: "cli",
	}))

	rec := doJSON(t, s, http.MethodPost, "/conversation/capture", api.CaptureRequest{
		SessionID:   sessionID,
		UserID:      userID,
		Prompt:      "what's on my calendar",
		MessageType: "user",
		Medium:      "cli",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/context/build", api.ContextBuildRequest{
		SessionID:     sessionID,
		UserID:        userID,
		CurrentPrompt: "what's on my calendar",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var built api.ContextBuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &built))
	assert.Contains(t, built.Context, "what's on my calendar")

	rec = doJSON(t, s, http.MethodPost, "/context/get", api.ContextGetRequest{SessionID: sessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.ContextGetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Found)
	assert.Equal(t, built.Context, got.Context)
}

func TestMemoryEditHistoryRollback(t *testing.T) {
	s, _ := newTestServer(t)
	userID := uuid.NewString()

	rec := doJSON(t, s, http.MethodPost, "/memory/core/edit", api.MemoryEditRequest{
		BlockType: "human",
		Content:   "likes dark mode",
		Scope:     "user",
		UserID:    userID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var v1 api.MemoryBlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v1))
	assert.Equal(t, "likes dark mode", v1.Content)

	rec = doJSON(t, s, http.MethodPost, "/memory/core/edit", api.MemoryEditRequest{
		BlockType: "human",
		Content:   "likes dark mode and vim bindings",
		Scope:     "user",
		UserID:    userID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var v2 api.MemoryBlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v2))
	assert.Equal(t, v1.CurrentVersion+1, v2.CurrentVersion)

	rec = doJSON(t, s, http.MethodGet, "/memory/core/history?scope=user&block_type=human&user_id="+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/memory/core/rollback", api.MemoryRollbackRequest{
		BlockType:     "human",
		TargetVersion: v1.CurrentVersion,
		Scope:         "user",
		UserID:        userID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var back api.MemoryBlockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &back))
	assert.Equal(t, "likes dark mode", back.Content)
}

func TestMissionCreateListPause(t *testing.T) {
	s, _ := newTestServer(t)
	userID := uuid.NewString()

	rec := doJSON(t, s, http.MethodPost, "/missions", api.MissionCreateRequest{
		UserID: userID,
		Name:   "watch-repo",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, s, http.MethodGet, "/missions?user_id="+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	rec = doJSON(t, s, http.MethodPost, "/missions/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paused")
}
