// Package factcheck is the Fact Checker / Integration Layer: it resolves
// entity names, finds potential contradictions against existing graph facts,
// and either commits clean facts directly or opens review items for a human
// (or a later LLM pass) to resolve. See Checker.IntegrateBatch.
package factcheck

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"golang.org/x/sync/errgroup"
)

// Similarity band bounds: a pair within [similarityLow, similarityHigh] is a
// candidate contradiction. Above similarityHigh the facts are near-duplicates
// (not a contradiction); below similarityLow they are unrelated.
const (
	similarityLow  = 0.70
	similarityHigh = 0.95

	directFactsCapPerFinding = 20
	hybridFactsCapPerFinding = 10
	entityResolveSearchLimit = 5
)

// Finding is one candidate fact surfaced by an exploration worker or any
// other producer, awaiting integration into the graph.
type Finding struct {
	FactText    string
	EntityNames []string
	Source      string
	Context     string
}

// Result tallies the outcome of one IntegrateBatch call.
type Result struct {
	Added   int
	Queued  int
	Skipped int
}

// Checker is the Fact Checker. It depends only on the narrow Graph Adapter
// contract and the contradiction review store, never on a concrete graph
// schema or embedding model.
type Checker struct {
	graph   graph.Adapter
	reviews *store.ContradictionReviewStore
	sink    events.Sink
}

func New(graphAdapter graph.Adapter, reviews *store.ContradictionReviewStore, sink events.Sink) *Checker {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Checker{graph: graphAdapter, reviews: reviews, sink: sink}
}

// IntegrateBatch resolves, checks, and integrates every finding in turn. A
// graph write failure on one finding is counted as skipped and logged; it
// never aborts the rest of the batch.
func (c *Checker) IntegrateBatch(ctx context.Context, userID, groupID string, findings []Finding) (Result, error) {
	var result Result
	for _, f := range findings {
		outcome, err := c.integrateOne(ctx, userID, groupID, f)
		if err != nil {
			slog.Warn("factcheck: integrate finding failed", "error", err, "fact", f.FactText)
			result.Skipped++
			continue
		}
		switch outcome {
		case outcomeAdded:
			result.Added++
		case outcomeQueued:
			result.Queued++
		case outcomeSkipped:
			result.Skipped++
		}
	}
	return result, nil
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeQueued
	outcomeSkipped
)

func (c *Checker) integrateOne(ctx context.Context, userID, groupID string, f Finding) (outcome, error) {
	entityUUIDs := c.resolveEntities(ctx, groupID, f.EntityNames)

	candidates, err := c.findCandidates(ctx, groupID, f.FactText, entityUUIDs)
	if err != nil {
		return outcomeSkipped, err
	}

	var contradictions []candidateContradiction
	for _, cand := range candidates {
		sim := similarity(f.FactText, cand.Content)
		if sim < similarityLow || sim > similarityHigh {
			continue
		}
		contradictions = append(contradictions, candidateContradiction{fact: cand, similarity: sim})
	}

	if len(contradictions) > 0 {
		for _, cc := range contradictions {
			if err := c.queueReview(ctx, userID, groupID, f, cc); err != nil {
				return outcomeSkipped, err
			}
		}
		return outcomeQueued, nil
	}

	if _, err := c.graph.AddFact(ctx, graph.AddFactInput{
		Fact:    f.FactText,
		GroupID: groupID,
		Source:  f.Source,
	}); err != nil {
		return outcomeSkipped, err
	}
	return outcomeAdded, nil
}

type candidateContradiction struct {
	fact       graph.Fact
	similarity float64
}

// findCandidates combines the two search strategies spec'd for contradiction
// detection: facts directly connected to resolved entities, and a hybrid
// fact search over the whole graph using the finding text as the query. The
// two strategies hit the graph independently, so they run concurrently via
// errgroup rather than back to back. Results are deduplicated by fact UUID.
func (c *Checker) findCandidates(ctx context.Context, groupID, factText string, entityUUIDs []string) ([]graph.Fact, error) {
	var (
		direct, hybrid []graph.Fact
		mu             sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	if len(entityUUIDs) > 0 {
		g.Go(func() error {
			facts, err := c.graph.GetFactsByEntities(gctx, entityUUIDs, groupID, directFactsCapPerFinding)
			if err != nil {
				return err
			}
			mu.Lock()
			direct = facts
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		facts, err := c.graph.HybridFactSearch(gctx, factText, groupID, hybridFactsCapPerFinding)
		if err != nil {
			return err
		}
		mu.Lock()
		hybrid = facts
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []graph.Fact
	for _, fact := range direct {
		if !seen[fact.UUID] {
			seen[fact.UUID] = true
			out = append(out, fact)
		}
	}
	for _, fact := range hybrid {
		if !seen[fact.UUID] {
			seen[fact.UUID] = true
			out = append(out, fact)
		}
	}
	return out, nil
}

// resolveEntities looks up each name via hybrid node search, preferring a
// case-insensitive exact match and falling back to the top result.
// Unresolved names are dropped silently; they never block fact submission.
func (c *Checker) resolveEntities(ctx context.Context, groupID string, names []string) []string {
	var uuids []string
	for _, name := range names {
		nodes, err := c.graph.HybridNodeSearch(ctx, name, groupID, entityResolveSearchLimit)
		if err != nil || len(nodes) == 0 {
			continue
		}
		uuids = append(uuids, resolveOne(nodes, name))
	}
	return uuids
}

func resolveOne(nodes []graph.Node, name string) string {
	for _, n := range nodes {
		if strings.EqualFold(n.Name, name) {
			return n.UUID
		}
	}
	return nodes[0].UUID
}

func (c *Checker) queueReview(ctx context.Context, userID, groupID string, f Finding, cc candidateContradiction) error {
	review := &store.ContradictionReview{
		ID:               uuid.NewString(),
		UserID:           userID,
		GroupID:          groupID,
		ExistingClaim:    cc.fact.Content,
		ExistingFactUUID: cc.fact.UUID,
		NewClaim:         f.FactText,
		Confidence:       cc.similarity,
		Reason:           "similarity within contradiction band",
		Source:           f.Source,
		Context:          f.Context,
		EntityNames:      f.EntityNames,
	}
	if err := c.reviews.Create(ctx, review); err != nil {
		return err
	}
	if err := c.sink.Publish(ctx, "integration:contradiction_detected", userID, map[string]any{
		"review_id":     review.ID,
		"new_claim":     review.NewClaim,
		"existing_claim": review.ExistingClaim,
		"similarity":    review.Confidence,
	}); err != nil {
		slog.Warn("factcheck: sink publish failed", "review_id", review.ID, "error", err)
	}
	return nil
}

// similarity reports a lexical similarity ratio in [0,1] between two fact
// strings. The real graph backend would score this on embeddings; the Graph
// Adapter boundary doesn't expose raw vectors, so the Fact Checker falls
// back to edit-distance similarity over the fact text it already has.
func similarity(a, b string) float64 {
	return levenshtein.Match(a, b, nil)
}
