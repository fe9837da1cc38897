// Package orchestrator is the Ambient Orchestrator: on a jittered timer it
// decides what the assistant should do between user turns — explore a
// curiosity, run a proactive mission, or stand down. See
// Orchestrator.CheckAndEngage and Loop for the scheduled entry point.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/llm"
	"github.com/omniwaifu/dere-sub005/pkg/mission"
	"github.com/omniwaifu/dere-sub005/pkg/presence"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/taskwarrior"
)

// Orchestrator ties the derived-state rule, activity tracking, mission
// invocation, and notification delivery into one per-user tick.
type Orchestrator struct {
	cfg Config

	db            *sql.DB
	daemon        *store.DaemonStateStore
	tasks         *store.ProjectTaskStore
	queue         *store.QueueStore
	notifications *store.NotificationStore
	notifCtx      *store.NotificationContextStore
	missions      *mission.Service
	presence      *presence.Service
	graph         graph.Adapter
	llm           llm.Adapter
	activity      ActivityProvider

	// taskwarrior is optional: when unset, the fingerprint's task-id set and
	// the overdue-task skip condition fall back to the internal project task
	// queue instead of a real taskwarrior install.
	taskwarrior *taskwarrior.Client

	streaks        *streakTracker
	lastTickByUser map[string]time.Time
}

// SetTaskwarrior wires a taskwarrior client into the fingerprint's task-id
// set and the overdue-task skip condition in shouldEngage. Left unset, both
// fall back to the internal project task queue.
func (o *Orchestrator) SetTaskwarrior(c *taskwarrior.Client) {
	o.taskwarrior = c
}

func New(db *sql.DB, cfg Config, daemon *store.DaemonStateStore, tasks *store.ProjectTaskStore, notifications *store.NotificationStore, missions *mission.Service, presenceSvc *presence.Service, graphAdapter graph.Adapter, llmAdapter llm.Adapter, activity ActivityProvider) *Orchestrator {
	if activity == nil {
		activity = NoopActivityProvider{}
	}
	return &Orchestrator{
		cfg: cfg, db: db, daemon: daemon, tasks: tasks, queue: store.NewQueueStore(db), notifications: notifications,
		notifCtx: store.NewNotificationContextStore(db),
		missions: missions, presence: presenceSvc, graph: graphAdapter, llm: llmAdapter, activity: activity,
		streaks: newStreakTracker(), lastTickByUser: map[string]time.Time{},
	}
}

func (o *Orchestrator) enqueue(ctx context.Context, entry *store.QueueEntry) error {
	return o.queue.Enqueue(ctx, entry)
}

// Action is what one tick decided to do for a user, returned mainly for
// observability and tests.
type Action struct {
	Kind  string // "exploration" | "engaged" | "skipped"
	Notif *store.AmbientNotification
}

// CheckAndEngage runs one checkAndEngage pass for userID at now.
func (o *Orchestrator) CheckAndEngage(ctx context.Context, userID string, now time.Time) (Action, error) {
	lookback := o.lookbackMinutes(userID, now)

	act, err := o.activity.Current(ctx, userID)
	if err != nil {
		slog.Warn("orchestrator: activity lookup failed", "user_id", userID, "error", err)
	}
	streakDur := o.streaks.update(userID, act, now)
	slog.Debug("orchestrator: tick", "user_id", userID, "lookback_minutes", lookback, "streak", streakDur)

	daemon, err := o.daemon.GetOrCreate(ctx, o.db, userID, now)
	if err != nil {
		return Action{}, fmt.Errorf("orchestrator: load daemon state: %w", err)
	}

	if o.cfg.ExplorationEnabled {
		fired, action, err := o.maybeRunExploration(ctx, userID, daemon, now)
		if err != nil {
			return Action{}, err
		}
		if fired {
			return action, nil
		}
	}

	state := Derive(daemon, daemon.ActiveSessionCount, now)
	if state != StateAvailable {
		return Action{Kind: "skipped"}, nil
	}
	if daemon.LastEngagementAt != nil && now.Sub(*daemon.LastEngagementAt) < o.cfg.ProactiveCooldown {
		return Action{Kind: "skipped"}, nil
	}

	should, fp, err := o.shouldEngage(ctx, userID, act, daemon, now)
	if err != nil {
		return Action{}, err
	}
	if !should {
		return Action{Kind: "skipped"}, nil
	}

	decision, err := o.invokeMission(ctx, userID, act, now)
	if err != nil {
		return Action{}, err
	}
	if decision == nil {
		return Action{Kind: "skipped"}, nil
	}

	notif, err := o.deliver(ctx, userID, *decision, fp, now)
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: "engaged", Notif: notif}, nil
}

// ActivityStateView is the read-only snapshot returned by ActivityState: the
// user's derived engagement state plus their current activity streak.
type ActivityStateView struct {
	State          State
	App            string
	Title          string
	StreakSeconds  float64
	HasActivity    bool
}

// ActivityState reports a user's current derived state and activity streak
// without running a tick — the backing for GET /activity/state. It takes no
// lookback window: the streak tracker only remembers the current (app,
// title) run, not a history to window over.
func (o *Orchestrator) ActivityState(ctx context.Context, userID string, now time.Time) (ActivityStateView, error) {
	daemon, err := o.daemon.GetOrCreate(ctx, o.db, userID, now)
	if err != nil {
		return ActivityStateView{}, fmt.Errorf("orchestrator: load daemon state: %w", err)
	}
	state := Derive(daemon, daemon.ActiveSessionCount, now)

	act, dur, ok := o.streaks.peek(userID, now)
	return ActivityStateView{
		State:         state,
		App:           act.App,
		Title:         act.Title,
		StreakSeconds: dur.Seconds(),
		HasActivity:   ok,
	}, nil
}

func (o *Orchestrator) lookbackMinutes(userID string, now time.Time) int {
	last, ok := o.lastTickByUser[userID]
	o.lastTickByUser[userID] = now
	ceiling := o.cfg.ActivityLookbackHours * 60
	if !ok {
		return ceiling
	}
	delta := int(now.Sub(last).Minutes())
	return clamp(10, delta, ceiling)
}

func clamp(lo, v, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// shouldEngage implements step 4 of checkAndEngage: AFK gate, idle-interaction
// gate, then the context-fingerprint-similarity skip. The returned
// Fingerprint is the one built this tick, valid whenever the bool return is
// true — deliver persists it as the notification_context snapshot step 7
// compares against on the next tick.
func (o *Orchestrator) shouldEngage(ctx context.Context, userID string, act Activity, daemon *store.DaemonState, now time.Time) (bool, Fingerprint, error) {
	target, err := o.presence.Route(ctx, userID, now)
	if err != nil {
		return false, Fingerprint{}, fmt.Errorf("orchestrator: route presence: %w", err)
	}
	if target.Desktop {
		// No online medium at all reads as AFK for engagement purposes —
		// there is nowhere to proactively deliver to anyway.
		return false, Fingerprint{}, nil
	}

	if daemon.LastEngagementAt != nil && now.Sub(*daemon.LastEngagementAt) < IdleThreshold {
		return false, Fingerprint{}, nil
	}

	fp, err := o.buildFingerprint(ctx, userID, act)
	if err != nil {
		return false, Fingerprint{}, err
	}
	prevFP, havePrev, err := o.previousFingerprint(ctx, userID)
	if err != nil {
		return false, Fingerprint{}, err
	}
	if havePrev {
		sim := Similarity(fp, prevFP)
		if sim >= o.cfg.ContextChangeThreshold {
			overdue, err := o.countOverdue(ctx, userID, now)
			if err != nil {
				return false, Fingerprint{}, err
			}
			unacked, err := o.notifications.ListPendingForUser(ctx, userID)
			if err != nil {
				return false, Fingerprint{}, fmt.Errorf("orchestrator: list pending notifications: %w", err)
			}
			if overdue == 0 && len(unacked) == 0 {
				return false, Fingerprint{}, nil
			}
		}
	}
	return true, fp, nil
}

// previousFingerprint loads the notification_context snapshot saved by the
// last tick that reached deliver, if any. A first-ever tick for a user (or
// one where deliver has never run) has no snapshot, which is read as "no
// previous context" — the conservative reading that never silently skips.
func (o *Orchestrator) previousFingerprint(ctx context.Context, userID string) (Fingerprint, bool, error) {
	snap, err := o.notifCtx.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Fingerprint{}, false, nil
		}
		return Fingerprint{}, false, fmt.Errorf("orchestrator: load notification context: %w", err)
	}
	var fp Fingerprint
	if err := json.Unmarshal(snap.Fingerprint, &fp); err != nil {
		return Fingerprint{}, false, fmt.Errorf("orchestrator: decode notification context: %w", err)
	}
	return fp, true, nil
}

// buildFingerprint assembles the activity+entities+tasks snapshot compared
// across ticks. The task-id set prefers a real taskwarrior install when one
// is wired; with none configured it falls back to the internal project task
// queue, which carries the same "what is the user still on the hook for"
// meaning for a deployment with no taskwarrior integration.
func (o *Orchestrator) buildFingerprint(ctx context.Context, userID string, act Activity) (Fingerprint, error) {
	fp := Fingerprint{ActivityApp: act.App, ActivityTitle: act.Title}

	if act.Title != "" && o.graph != nil {
		nodes, err := o.graph.HybridNodeSearch(ctx, act.Title, userID, 5)
		if err == nil {
			for _, n := range nodes {
				fp.Entities = append(fp.Entities, n.Name)
			}
		}
	}

	if o.taskwarrior != nil {
		ids, err := o.taskwarrior.IDs(ctx)
		if err != nil {
			return fp, fmt.Errorf("orchestrator: list taskwarrior ids: %w", err)
		}
		fp.TaskIDs = ids
		return fp, nil
	}

	pending, err := o.tasks.ListPendingForUser(ctx, userID)
	if err != nil {
		return fp, fmt.Errorf("orchestrator: list pending tasks: %w", err)
	}
	for _, t := range pending {
		fp.TaskIDs = append(fp.TaskIDs, t.ID)
	}
	return fp, nil
}

// countOverdue counts the tasks feeding the shouldEngage skip condition.
// With a taskwarrior client wired, "overdue" means taskwarrior's own
// due-date tracking; otherwise it falls back to the internal project task
// queue's pending count, which has no due dates of its own so "pending" is
// the closest available reading of "still on the hook".
func (o *Orchestrator) countOverdue(ctx context.Context, userID string, now time.Time) (int, error) {
	if o.taskwarrior != nil {
		overdue, err := o.taskwarrior.Overdue(ctx, now.UTC().Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("orchestrator: list overdue taskwarrior tasks: %w", err)
		}
		return len(overdue), nil
	}
	pending, err := o.tasks.CountPendingForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: count pending tasks: %w", err)
	}
	return pending, nil
}

// invokeMission creates a short-lived mission row, records its execution,
// and asks the LLM whether to proactively reach out.
func (o *Orchestrator) invokeMission(ctx context.Context, userID string, act Activity, now time.Time) (*MissionDecision, error) {
	m := &store.Mission{ID: uuid.NewString(), UserID: userID, Name: "ambient-checkin", Status: "running_once"}
	if _, err := o.missions.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("orchestrator: create mission: %w", err)
	}
	execID, err := o.missions.StartExecution(ctx, m.ID, nil, "orchestrator", now)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: start mission execution: %w", err)
	}

	llmCtx, cancel := context.WithTimeout(ctx, o.cfg.LLMTimeout)
	defer cancel()

	prompt := fmt.Sprintf("The user is currently in %q (%q). Decide whether a proactive check-in is worth sending.", act.App, act.Title)
	var decision MissionDecision
	err = o.llm.Structured(llmCtx, prompt, ambientMissionDecisionSchema, "ambient_mission_decision", &decision)
	if err != nil {
		_ = o.missions.FinishExecution(ctx, execID, "failed", "", err.Error(), now)
		return nil, fmt.Errorf("orchestrator: mission decision: %w", err)
	}
	_ = o.missions.FinishExecution(ctx, execID, "completed", decision.Message, "", now)

	if !decision.Send || decision.Confidence < MinConfidence {
		return nil, nil
	}
	return &decision, nil
}

// deliver routes the decision to the best medium, records it as a pending
// notification, saves the tick's fingerprint as the notification_context
// snapshot the next tick's shouldEngage compares against, then stamps the
// daemon's last-interaction time.
func (o *Orchestrator) deliver(ctx context.Context, userID string, decision MissionDecision, fp Fingerprint, now time.Time) (*store.AmbientNotification, error) {
	target, err := o.presence.Route(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: route delivery: %w", err)
	}

	medium := target.Medium
	if target.Desktop {
		medium = "desktop"
	}
	notif := &store.AmbientNotification{
		ID: uuid.NewString(), UserID: userID, Medium: medium, Kind: "ambient_checkin",
		Body: decision.Message, Metadata: map[string]any{
			"priority":   decision.Priority,
			"confidence": decision.Confidence,
			"channel":    target.Channel,
			"reasoning":  decision.Reasoning,
		},
	}
	if err := o.notifications.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("orchestrator: create notification: %w", err)
	}

	fpJSON, err := json.Marshal(fp)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encode notification context: %w", err)
	}
	if err := o.notifCtx.Save(ctx, userID, fpJSON, now); err != nil {
		return nil, fmt.Errorf("orchestrator: save notification context: %w", err)
	}

	cooldownUntil := now.Add(o.cfg.ProactiveCooldown)
	if err := o.daemon.RecordEngagement(ctx, userID, now, cooldownUntil); err != nil {
		return nil, fmt.Errorf("orchestrator: record engagement: %w", err)
	}
	return notif, nil
}
