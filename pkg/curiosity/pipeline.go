// Package curiosity converts conversation turns into prioritized exploration
// tasks without unbounded backlog growth. See Pipeline.EvaluateTurn for the
// entry point the Conversation Ingestor calls on every captured turn.
package curiosity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Config tunes the backlog invariants enforced on every ingestion.
type Config struct {
	MaxPendingPerUser int     // default 100
	MaxPendingPerType int     // default 25
	MinPriority       float64 // prune pending tasks scoring below this, default 0.15
}

// DefaultConfig matches spec §4.2's stated defaults.
func DefaultConfig() Config {
	return Config{MaxPendingPerUser: 100, MaxPendingPerType: 25, MinPriority: 0.15}
}

// Pipeline is the Curiosity Pipeline: detectors + priority function + bounded
// backlog maintenance, run inside one serializable-by-user transaction per
// ingested turn.
type Pipeline struct {
	db    *sql.DB
	graph graph.Adapter
	sink  events.Sink
	cfg   Config
	now   func() time.Time
}

func New(db *sql.DB, graphAdapter graph.Adapter, sink events.Sink, cfg Config) *Pipeline {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Pipeline{db: db, graph: graphAdapter, sink: sink, cfg: cfg, now: time.Now}
}

// EvaluateTurn implements pkg/ingest.CuriosityEvaluator. It has no pending
// work without a user id (an anonymous or system turn can't own a backlog).
func (p *Pipeline) EvaluateTurn(ctx context.Context, sessionID, userID string, role ingest.Role, prompt string, isCommand bool, at time.Time) error {
	if userID == "" {
		return nil
	}

	prevRole, prevPrompt := p.previousTurn(ctx, sessionID)
	signals := p.detect(ctx, userID, string(role), prompt, prevRole, prevPrompt)
	signals = dedupeByTitle(signals)
	if len(signals) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("curiosity: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := store.LockUser(ctx, tx, userID); err != nil {
		return err
	}

	tasks := store.NewProjectTaskStore(tx)
	now := p.now().UTC()

	for _, sig := range signals {
		if err := p.upsertSignal(ctx, tasks, userID, sig, now); err != nil {
			return fmt.Errorf("curiosity: upsert signal %s: %w", sig.Type, err)
		}
	}

	if err := p.enforceBacklog(ctx, tasks, userID, now); err != nil {
		return fmt.Errorf("curiosity: enforce backlog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("curiosity: commit: %w", err)
	}

	for _, sig := range signals {
		if err := p.sink.Publish(context.Background(), "curiosity.signal_detected", sessionID, map[string]any{
			"type":  sig.Type,
			"title": sig.Title,
		}); err != nil {
			slog.Warn("curiosity: sink publish failed", "signal_type", sig.Type, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) previousTurn(ctx context.Context, sessionID string) (role, prompt string) {
	convos := store.NewConversationStore(p.db)
	recent, err := convos.RecentForSession(ctx, sessionID, 2)
	if err != nil || len(recent) < 2 {
		return "", ""
	}
	// recent[0] is the turn just captured; recent[1] is the one before it.
	return recent[1].Role, recent[1].Prompt
}

func (p *Pipeline) detect(ctx context.Context, userID, role, prompt, prevRole, prevPrompt string) []Signal {
	var signals []Signal

	if sig := DetectCorrection(prevRole, prompt); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := DetectEmotionalPeak(role, prompt); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := DetectKnowledgeGap(prevRole, prompt); sig != nil {
		signals = append(signals, *sig)
	}
	if role == "user" && p.graph != nil {
		signals = append(signals, p.detectUnfamiliarEntities(ctx, userID, prompt)...)
	}
	return signals
}

const maxEntityCandidatesPerTurn = 3

func (p *Pipeline) detectUnfamiliarEntities(ctx context.Context, userID, prompt string) []Signal {
	candidates := ExtractEntityCandidates(prompt)
	var out []Signal
	for i, name := range candidates {
		if i >= maxEntityCandidatesPerTurn {
			break
		}
		nodes, err := p.graph.HybridNodeSearch(ctx, name, userID, 1)
		if err != nil {
			slog.Warn("curiosity: entity lookup failed", "entity", name, "error", err)
			continue
		}
		if entityKnown(nodes, name) {
			continue
		}
		out = append(out, Signal{
			Type:         SignalUnfamiliarEntity,
			Title:        "Unfamiliar entity: " + name,
			UserInterest: 0.4,
		})
	}
	return out
}

func entityKnown(nodes []graph.Node, name string) bool {
	for _, n := range nodes {
		if strings.EqualFold(n.Name, name) {
			return true
		}
	}
	return len(nodes) > 0
}

func dedupeByTitle(signals []Signal) []Signal {
	seen := map[string]bool{}
	var out []Signal
	for _, sig := range signals {
		key := strings.ToLower(strings.TrimSpace(sig.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sig)
	}
	return out
}

func (p *Pipeline) upsertSignal(ctx context.Context, tasks *store.ProjectTaskStore, userID string, sig Signal, now time.Time) error {
	titleKey := strings.ToLower(strings.TrimSpace(sig.Title))

	existing, err := tasks.GetByTitleKeyForUpdate(ctx, userID, titleKey)
	if err != nil {
		if err == store.ErrNotFound {
			return p.insertSignal(ctx, tasks, userID, sig, now)
		}
		return err
	}

	if existing.Status == store.TaskStatusDone || existing.Status == store.TaskStatusCancelled {
		return nil
	}

	triggerCount := extraInt(existing.Extra, "trigger_count") + 1
	explorationCount := extraInt(existing.Extra, "exploration_count")
	ageDays := ageInDays(now, coalesceTime(existing.LastTriggeredAt, &existing.CreatedAt))

	score := Score(PriorityInputs{
		Signal:           sig,
		AgeDays:          ageDays,
		ExplorationCount: explorationCount,
		TriggerCount:     triggerCount,
	})
	bonus := RepeatBonus(triggerCount)
	newPriority := StoredPriority(score + bonus)

	extra := mergeExtra(existing.Extra, map[string]any{
		"trigger_count":    triggerCount,
		"priority_factors": priorityFactors(sig, score, bonus),
	})

	return tasks.UpdateFromSignal(ctx, existing.ID, newPriority, extra, now)
}

func (p *Pipeline) insertSignal(ctx context.Context, tasks *store.ProjectTaskStore, userID string, sig Signal, now time.Time) error {
	score := Score(PriorityInputs{Signal: sig, AgeDays: 0, ExplorationCount: 0, TriggerCount: 0})
	task := &store.ProjectTask{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    sig.Title,
		TaskType: "curiosity",
		Status:   store.TaskStatusReady,
		Priority: StoredPriority(score),
		Extra: map[string]any{
			"trigger_count":    1,
			"priority_factors": priorityFactors(sig, score, 0),
		},
	}
	return tasks.Insert(ctx, task, now)
}

func priorityFactors(sig Signal, score, bonus float64) map[string]any {
	return map[string]any{
		"signal_type":   sig.Type,
		"user_interest": sig.UserInterest,
		"knowledge_gap": sig.KnowledgeGap,
		"score":         score,
		"repeat_bonus":  bonus,
	}
}

func mergeExtra(existing map[string]any, updates map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

func extraInt(extra map[string]any, key string) int {
	v, ok := extra[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func coalesceTime(primary *time.Time, fallback *time.Time) time.Time {
	if primary != nil {
		return *primary
	}
	if fallback != nil {
		return *fallback
	}
	return time.Time{}
}

func ageInDays(now, t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return now.Sub(t).Hours() / 24
}
