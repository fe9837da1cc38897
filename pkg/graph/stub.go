package graph

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryAdapter is an in-process Adapter backed by plain maps. It is not a
// real graph (no embeddings, no BFS traversal beyond direct edges) — it
// exists for tests and for running the daemon without a graph backend
// wired up.
type MemoryAdapter struct {
	mu    sync.RWMutex
	nodes map[string]Node
	// edges maps a node UUID to the UUIDs of facts that mention it.
	edges map[string][]string
	facts map[string]Fact
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		nodes: make(map[string]Node),
		edges: make(map[string][]string),
		facts: make(map[string]Fact),
	}
}

// SeedNode registers a node directly, for test fixtures.
func (m *MemoryAdapter) SeedNode(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.UUID] = n
}

// SeedFact registers a fact directly, for test fixtures.
func (m *MemoryAdapter) SeedFact(f Fact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[f.UUID] = f
}

func (m *MemoryAdapter) AddEpisode(ctx context.Context, in EpisodeInput) (EpisodeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node := Node{UUID: uuid.NewString(), Name: in.SpeakerName, Summary: in.EpisodeBody}
	m.nodes[node.UUID] = node
	return EpisodeResult{Nodes: []Node{node}}, nil
}

func (m *MemoryAdapter) SearchGraph(ctx context.Context, q SearchQuery) (SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result SearchResult
	needle := strings.ToLower(q.Query)
	for _, n := range m.nodes {
		if strings.Contains(strings.ToLower(n.Name), needle) || strings.Contains(strings.ToLower(n.Summary), needle) {
			result.Nodes = append(result.Nodes, n)
		}
		if q.Limit > 0 && len(result.Nodes) >= q.Limit {
			break
		}
	}
	for _, f := range m.facts {
		if strings.Contains(strings.ToLower(f.Content), needle) {
			result.Facts = append(result.Facts, f)
		}
		if q.Limit > 0 && len(result.Facts) >= q.Limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryAdapter) NodeBFSSearch(ctx context.Context, entityUUIDs []string, groupID string, maxDepth, limit int) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seed := make(map[string]bool, len(entityUUIDs))
	for _, id := range entityUUIDs {
		seed[id] = true
	}
	var out []Node
	for id := range seed {
		if n, ok := m.nodes[id]; ok {
			out = append(out, n)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryAdapter) GetFactsByEntities(ctx context.Context, uuids []string, groupID string, limit int) ([]Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[string]bool, len(uuids))
	for _, id := range uuids {
		want[id] = true
	}
	var out []Fact
	for _, f := range m.facts {
		for _, eid := range f.EntityUUIDs {
			if want[eid] {
				out = append(out, f)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryAdapter) HybridFactSearch(ctx context.Context, query, groupID string, limit int) ([]Fact, error) {
	res, err := m.SearchGraph(ctx, SearchQuery{Query: query, GroupID: groupID, Limit: limit})
	return res.Facts, err
}

func (m *MemoryAdapter) HybridNodeSearch(ctx context.Context, query, groupID string, limit int) ([]Node, error) {
	res, err := m.SearchGraph(ctx, SearchQuery{Query: query, GroupID: groupID, Limit: limit})
	return res.Nodes, err
}

func (m *MemoryAdapter) AddFact(ctx context.Context, in AddFactInput) (Fact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact := Fact{
		UUID:       uuid.NewString(),
		Content:    in.Fact,
		Attributes: in.Attributes,
	}
	m.facts[fact.UUID] = fact
	return fact, nil
}

func (m *MemoryAdapter) GraphAvailable(ctx context.Context) bool {
	return true
}
