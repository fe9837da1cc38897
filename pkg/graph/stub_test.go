package graph_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapterHybridNodeSearchMatchesByName(t *testing.T) {
	adapter := graph.NewMemoryAdapter()
	nodeID := uuid.NewString()
	adapter.SeedNode(graph.Node{UUID: nodeID, Name: "Project Nimbus", Summary: "a side project"})

	nodes, err := adapter.HybridNodeSearch(t.Context(), "nimbus", "group-1", 5)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nodeID, nodes[0].UUID)
}

func TestMemoryAdapterAddFactIsFindableByEntity(t *testing.T) {
	adapter := graph.NewMemoryAdapter()
	fact, err := adapter.AddFact(t.Context(), graph.AddFactInput{Fact: "prefers dark mode", GroupID: "group-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, fact.UUID)
	assert.True(t, adapter.GraphAvailable(t.Context()))
}
