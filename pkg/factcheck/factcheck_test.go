package factcheck_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/factcheck"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	testdb "github.com/omniwaifu/dere-sub005/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrateBatchQueuesCandidateContradiction(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()

	g := graph.NewMemoryAdapter()
	parisID := uuid.NewString()
	g.SeedNode(graph.Node{UUID: parisID, Name: "Paris"})
	g.SeedFact(graph.Fact{UUID: uuid.NewString(), Content: "Paris is the capital of France.", EntityUUIDs: []string{parisID}})

	reviews := store.NewContradictionReviewStore(client.DB())
	checker := factcheck.New(g, reviews, nil)

	result, err := checker.IntegrateBatch(t.Context(), userID, "default", []factcheck.Finding{
		{FactText: "Paris is the capital of Germany.", EntityNames: []string{"Paris"}, Source: "exploration"},
	})
	require.NoError(t, err)
	assert.Equal(t, factcheck.Result{Added: 0, Queued: 1, Skipped: 0}, result)

	pending, err := reviews.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.ReviewStatusPending, pending[0].Status)
	assert.Equal(t, "Paris is the capital of Germany.", pending[0].NewClaim)
}

func TestIntegrateBatchAddsFactWithNoContradiction(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()

	g := graph.NewMemoryAdapter()
	reviews := store.NewContradictionReviewStore(client.DB())
	checker := factcheck.New(g, reviews, nil)

	result, err := checker.IntegrateBatch(t.Context(), userID, "default", []factcheck.Finding{
		{FactText: "The sky appears blue due to Rayleigh scattering.", Source: "exploration"},
	})
	require.NoError(t, err)
	assert.Equal(t, factcheck.Result{Added: 1, Queued: 0, Skipped: 0}, result)

	pending, err := reviews.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveReviewAcceptedNewCommitsGraphWrite(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()

	g := graph.NewMemoryAdapter()
	parisID := uuid.NewString()
	g.SeedNode(graph.Node{UUID: parisID, Name: "Paris"})
	g.SeedFact(graph.Fact{UUID: uuid.NewString(), Content: "Paris is the capital of France.", EntityUUIDs: []string{parisID}})

	reviews := store.NewContradictionReviewStore(client.DB())
	checker := factcheck.New(g, reviews, nil)

	_, err := checker.IntegrateBatch(t.Context(), userID, "default", []factcheck.Finding{
		{FactText: "Paris is the capital of Germany.", EntityNames: []string{"Paris"}, Source: "exploration"},
	})
	require.NoError(t, err)

	pending, err := reviews.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, checker.ResolveReview(t.Context(), pending[0].ID, store.ReviewStatusAcceptedNew, "alice", "double-checked the atlas", time.Now().UTC()))

	resolved, err := reviews.Get(t.Context(), pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, store.ReviewStatusAcceptedNew, resolved.Status)
	require.NotNil(t, resolved.Resolver)
	assert.Equal(t, "alice", *resolved.Resolver)

	remaining, err := reviews.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestResolveReviewKeptOldSkipsGraphWrite(t *testing.T) {
	client := testdb.NewTestClient(t)
	userID := uuid.NewString()

	g := graph.NewMemoryAdapter()
	parisID := uuid.NewString()
	g.SeedNode(graph.Node{UUID: parisID, Name: "Paris"})
	g.SeedFact(graph.Fact{UUID: uuid.NewString(), Content: "Paris is the capital of France.", EntityUUIDs: []string{parisID}})

	reviews := store.NewContradictionReviewStore(client.DB())
	checker := factcheck.New(g, reviews, nil)

	_, err := checker.IntegrateBatch(t.Context(), userID, "default", []factcheck.Finding{
		{FactText: "Paris is the capital of Germany.", EntityNames: []string{"Paris"}, Source: "exploration"},
	})
	require.NoError(t, err)

	pending, err := reviews.ListPendingForUser(t.Context(), userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, checker.ResolveReview(t.Context(), pending[0].ID, store.ReviewStatusKeptOld, "alice", "atlas confirms the original", time.Now().UTC()))

	resolved, err := reviews.Get(t.Context(), pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, store.ReviewStatusKeptOld, resolved.Status)
}
