package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// explorationTaskType is the QueueEntry.TaskType of the Work Queue job the
// exploration kickoff path enqueues. The ProjectTask it claims keeps its own
// type ("curiosity" for pipeline-filed tasks), so the daily cap counts
// curiosity tasks started since the start of the day.
const explorationTaskType = "exploration"

// maybeRunExploration implements the alternate kickoff path: gated on
// derived state != engaged, a daily cap, presence of backlog, and either an
// idle-enough user or a forced run past MaxHoursBetweenExplorations. It
// returns fired=true when it claimed and queued a task — callers must treat
// that as the tick's one action.
func (o *Orchestrator) maybeRunExploration(ctx context.Context, userID string, daemon *store.DaemonState, now time.Time) (bool, Action, error) {
	if Derive(daemon, daemon.ActiveSessionCount, now) == StateEngaged {
		return false, Action{}, nil
	}

	dayStart := now.Truncate(24 * time.Hour)
	ranToday, err := o.tasks.CountStartedSince(ctx, userID, "curiosity", dayStart)
	if err != nil {
		return false, Action{}, fmt.Errorf("orchestrator: count explorations today: %w", err)
	}
	if ranToday >= o.cfg.DailyExplorationCap {
		return false, Action{}, nil
	}

	backlog, err := o.tasks.CountPendingForType(ctx, userID, "curiosity")
	if err != nil {
		return false, Action{}, fmt.Errorf("orchestrator: count curiosity backlog: %w", err)
	}
	if backlog == 0 {
		return false, Action{}, nil
	}

	idleEnough := daemon.LastEngagementAt == nil || now.Sub(*daemon.LastEngagementAt) >= IdleThreshold
	forced := daemon.LastExplorationAt == nil ||
		now.Sub(*daemon.LastExplorationAt) >= time.Duration(o.cfg.MaxHoursBetweenExplorations*float64(time.Hour))
	if !idleEnough && !forced {
		return false, Action{}, nil
	}

	claimed, err := o.tasks.ClaimNext(ctx, o.db, userID, "", "ambient-orchestrator", now)
	if err != nil {
		if err == store.ErrNotClaimed {
			return false, Action{}, nil
		}
		return false, Action{}, fmt.Errorf("orchestrator: claim exploration task: %w", err)
	}

	if err := o.daemon.RecordExploration(ctx, userID, now); err != nil {
		return false, Action{}, fmt.Errorf("orchestrator: record exploration: %w", err)
	}

	// Hand the claimed backlog item to a Work Queue worker; its findings
	// re-enter the Fact Checker once the worker runs the exploration and
	// reports back.
	_, err = o.queueExploration(ctx, claimed, now)
	if err != nil {
		return false, Action{}, err
	}

	return true, Action{Kind: "exploration"}, nil
}

func (o *Orchestrator) queueExploration(ctx context.Context, task *store.ProjectTask, now time.Time) (string, error) {
	entry := &store.QueueEntry{
		ID:        uuid.NewString(),
		TaskType:  explorationTaskType,
		ModelName: "default",
		Content:   task.Description,
		Priority:  clampInt(100-task.Priority, 0, 100),
		SessionID: task.ClaimSessionID,
		Metadata:  map[string]any{"project_task_id": task.ID},
	}
	if err := o.enqueue(ctx, entry); err != nil {
		return "", fmt.Errorf("orchestrator: enqueue exploration: %w", err)
	}
	return entry.ID, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
