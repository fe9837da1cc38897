// Package context builds and caches the per-session materialized context
// blob handed back to frontends by /context/build and /context/get — recent
// conversation plus graph-derived facts, formatted as plain text with
// optional inline citations.
package context

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// DefaultMaxAge is the staleness bound context/get applies when the caller
// doesn't specify max_age_minutes.
const DefaultMaxAge = 30 * time.Minute

// DefaultDepth is how many recent conversation turns are folded into a
// freshly built context when the caller doesn't specify context_depth.
const DefaultDepth = 10

// BuildInput is Build's request shape, mirroring the /context/build body.
type BuildInput struct {
	SessionID            string
	ProjectPath          string
	UserID               string
	ContextDepth         int
	IncludeCitations     bool
	CitationLimitPerEdge int
	CitationMaxChars     int
	CurrentPrompt        string
}

// Builder is the Context Build component: it assembles a session's
// materialized context and caches it in ContextCache.
type Builder struct {
	convos *store.ConversationStore
	cache  *store.ContextCacheStore
	graph  graph.Adapter
	now    func() time.Time
}

// New constructs a Builder. graphAdapter may be nil for deployments running
// without a knowledge graph — Build then degrades to conversation-only
// context instead of failing.
func New(convos *store.ConversationStore, cache *store.ContextCacheStore, graphAdapter graph.Adapter) *Builder {
	return &Builder{convos: convos, cache: cache, graph: graphAdapter, now: time.Now}
}

// Build assembles fresh context for a session and caches it.
func (b *Builder) Build(ctx context.Context, in BuildInput) (string, error) {
	depth := in.ContextDepth
	if depth <= 0 {
		depth = DefaultDepth
	}

	turns, err := b.convos.RecentForSession(ctx, in.SessionID, depth)
	if err != nil {
		return "", fmt.Errorf("context: load recent turns: %w", err)
	}

	var sb strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Prompt == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Prompt)
	}

	if b.graph != nil && b.graph.GraphAvailable(ctx) {
		query := in.CurrentPrompt
		if query == "" && len(turns) > 0 {
			query = turns[0].Prompt
		}
		if query != "" {
			res, err := b.graph.SearchGraph(ctx, graph.SearchQuery{Query: query, GroupID: in.UserID, Limit: 10})
			if err == nil && len(res.Facts) > 0 {
				sb.WriteString("\nRelevant facts:\n")
				limit := in.CitationLimitPerEdge
				if limit <= 0 || limit > len(res.Facts) {
					limit = len(res.Facts)
				}
				for _, f := range res.Facts[:limit] {
					line := f.Content
					if in.IncludeCitations {
						line = withCitation(line, f.UUID, in.CitationMaxChars)
					}
					sb.WriteString("- " + line + "\n")
				}
			}
		}
	}

	text := sb.String()
	if err := b.cache.Upsert(ctx, in.SessionID, text, map[string]any{"project_path": in.ProjectPath}, b.now().UTC()); err != nil {
		return "", fmt.Errorf("context: cache: %w", err)
	}
	return text, nil
}

// Get returns the cached context for a session if fresh within maxAge (0
// means DefaultMaxAge).
func (b *Builder) Get(ctx context.Context, sessionID string, maxAge time.Duration) (string, bool, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return b.cache.Get(ctx, sessionID, maxAge, b.now().UTC())
}

func withCitation(content, uuid string, maxChars int) string {
	if maxChars > 0 && len(content) > maxChars {
		content = content[:maxChars]
	}
	return fmt.Sprintf("%s [%s]", content, uuid)
}
