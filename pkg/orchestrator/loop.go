package orchestrator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Loop drives Orchestrator.CheckAndEngage on a jittered schedule for a set
// of users. UserLister is called fresh each tick so newly active users are
// picked up without a restart.
type Loop struct {
	orch       *Orchestrator
	cfg        Config
	userLister func(ctx context.Context) ([]string, error)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(orch *Orchestrator, cfg Config, userLister func(ctx context.Context) ([]string, error)) *Loop {
	return &Loop{orch: orch, cfg: cfg, userLister: userLister}
}

// Start launches the tick loop: an initial StartupDelay, then repeated
// checkAndEngage passes over every listed user, each wait jittered ±
// JitterFraction around CheckInterval.
func (l *Loop) Start(ctx context.Context) {
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx)
}

func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	if l.cfg.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.StartupDelay):
		}
	}

	for {
		l.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.jitteredInterval()):
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	users, err := l.userLister(ctx)
	if err != nil {
		slog.Error("orchestrator: list users failed", "error", err)
		return
	}
	now := time.Now().UTC()
	for _, userID := range users {
		action, err := l.orch.CheckAndEngage(ctx, userID, now)
		if err != nil {
			slog.Error("orchestrator: check and engage failed", "user_id", userID, "error", err)
			continue
		}
		if action.Kind != "skipped" {
			slog.Info("orchestrator: tick action", "user_id", userID, "action", action.Kind)
		}
	}
}

// jitteredInterval applies ±JitterFraction uniform jitter to CheckInterval.
func (l *Loop) jitteredInterval() time.Duration {
	base := l.cfg.CheckInterval
	if l.cfg.JitterFraction <= 0 {
		return base
	}
	span := time.Duration(float64(base) * l.cfg.JitterFraction)
	offset := time.Duration(rand.Int64N(int64(2 * span)))
	return base - span + offset
}

// DistinctSessionUsers returns a user lister backed by the session store's
// distinct user ids. store.DaemonStateStore is not queryable by "all users"
// directly, so deployments supply a lister over whatever keeps the
// authoritative user set (this one, or a static config list for a
// single-tenant daemon).
func DistinctSessionUsers(sessions *store.SessionStore) func(ctx context.Context) ([]string, error) {
	return sessions.DistinctUserIDs
}
