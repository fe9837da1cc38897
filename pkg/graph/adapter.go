// Package graph defines the narrow interface the core uses to reach the
// external knowledge graph store. The core never depends on a concrete
// graph schema, embedding model, or query language — only on Adapter.
package graph

import "context"

// EpisodeInput is the conversational event handed to addEpisode.
type EpisodeInput struct {
	EpisodeBody      string
	SourceDescription string
	ReferenceTime    string
	Source           string
	GroupID          string
	SpeakerID        string
	SpeakerName      string
	Personality      string
}

// Node is a resolved graph node (entity).
type Node struct {
	UUID    string
	Name    string
	Labels  []string
	Summary string
}

// Fact is a resolved graph fact (edge-like statement about entities).
type Fact struct {
	UUID       string
	Content    string
	EntityUUIDs []string
	Attributes map[string]any
}

// EpisodeResult is addEpisode's response: the nodes it touched or created.
type EpisodeResult struct {
	Nodes []Node
}

// SearchQuery parameterizes a hybrid graph search.
type SearchQuery struct {
	Query         string
	GroupID       string
	Limit         int
	RerankMethod  string
	RerankAlpha   *float64
	RecencyWeight *float64
	Filters       map[string]any
}

// SearchResult is searchGraph's response.
type SearchResult struct {
	Nodes []Node
	Facts []Fact
}

// AddFactInput is addFact's request.
type AddFactInput struct {
	Fact    string
	GroupID string
	Source  string
	Attributes map[string]any
}

// Adapter is the narrow surface the core requires of the external knowledge
// graph. Implementations own the concrete graph schema and query engine.
type Adapter interface {
	AddEpisode(ctx context.Context, in EpisodeInput) (EpisodeResult, error)
	SearchGraph(ctx context.Context, q SearchQuery) (SearchResult, error)
	NodeBFSSearch(ctx context.Context, entityUUIDs []string, groupID string, maxDepth, limit int) ([]Node, error)
	GetFactsByEntities(ctx context.Context, uuids []string, groupID string, limit int) ([]Fact, error)
	HybridFactSearch(ctx context.Context, query, groupID string, limit int) ([]Fact, error)
	HybridNodeSearch(ctx context.Context, query, groupID string, limit int) ([]Node, error)
	AddFact(ctx context.Context, in AddFactInput) (Fact, error)

	// GraphAvailable reports whether the backing graph is reachable. Callers
	// use this to degrade gracefully (e.g. skip curiosity exploration) rather
	// than fail hard when the graph is temporarily down.
	GraphAvailable(ctx context.Context) bool
}
