package curiosity

import (
	"context"
	"sort"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// enforceBacklog prunes pending tasks (status ∈ {backlog, ready, blocked})
// exceeding the configured caps, or aged/decayed past their threshold, per
// spec §4.2's backlog invariants. Runs inside the caller's transaction so it
// commits atomically with the signal upserts that may have just created or
// bumped the tasks it inspects.
func (p *Pipeline) enforceBacklog(ctx context.Context, tasks *store.ProjectTaskStore, userID string, now time.Time) error {
	pending, err := tasks.ListPendingForUser(ctx, userID)
	if err != nil {
		return err
	}

	kept := make([]*store.ProjectTask, 0, len(pending))
	for _, t := range pending {
		reason := pruneReason(p.cfg, t, now)
		if reason == "" {
			kept = append(kept, t)
			continue
		}
		if err := tasks.Prune(ctx, t.ID, reason, now); err != nil {
			return err
		}
	}

	if over := len(kept) - p.cfg.MaxPendingPerUser; over > 0 {
		for _, t := range lowestPriorityFirst(kept, over) {
			if err := tasks.Prune(ctx, t.ID, "max pending tasks per user exceeded", now); err != nil {
				return err
			}
		}
	}

	byType := map[string][]*store.ProjectTask{}
	for _, t := range kept {
		byType[t.TaskType] = append(byType[t.TaskType], t)
	}
	for _, group := range byType {
		if over := len(group) - p.cfg.MaxPendingPerType; over > 0 {
			for _, t := range lowestPriorityFirst(group, over) {
				if err := tasks.Prune(ctx, t.ID, "max pending tasks per type exceeded", now); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pruneReason reports why a task should be cancelled, or "" if it should
// survive this pass.
func pruneReason(cfg Config, t *store.ProjectTask, now time.Time) string {
	effective := t.CreatedAt
	if t.LastTriggeredAt != nil {
		effective = *t.LastTriggeredAt
	}
	age := now.Sub(effective).Hours() / 24
	if age > ttlDays(signalTypeForTask(t)) {
		return "ttl expired"
	}
	if float64(t.Priority)/100.0 < cfg.MinPriority {
		return "priority below floor"
	}
	return ""
}

// signalTypeForTask recovers the originating signal type from a task's
// extra.priority_factors, falling back to a 14-day TTL default when absent
// (e.g. a user-created task with no curiosity provenance).
func signalTypeForTask(t *store.ProjectTask) string {
	factors, ok := t.Extra["priority_factors"].(map[string]any)
	if !ok {
		return ""
	}
	signalType, _ := factors["signal_type"].(string)
	return signalType
}

// lowestPriorityFirst returns the n lowest-priority tasks to evict when a
// backlog cap is exceeded, breaking priority ties by effective time (oldest
// first). tasks is assumed already sorted ascending by effective time
// (ListPendingForUser's ordering), so the stable sort here preserves that
// tiebreak without re-deriving effective time.
func lowestPriorityFirst(tasks []*store.ProjectTask, n int) []*store.ProjectTask {
	byPriority := make([]*store.ProjectTask, len(tasks))
	copy(byPriority, tasks)
	sort.SliceStable(byPriority, func(i, j int) bool {
		return byPriority[i].Priority < byPriority[j].Priority
	})
	if n > len(byPriority) {
		n = len(byPriority)
	}
	return byPriority[:n]
}
