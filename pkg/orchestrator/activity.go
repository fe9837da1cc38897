package orchestrator

import (
	"context"
	"sync"
	"time"
)

// Activity is a point-in-time read of what the user is doing on their
// desktop — the foreground application and window title. The daemon core
// never inspects the OS directly; it asks an ActivityProvider, which a
// platform-specific agent running alongside the daemon implements.
type Activity struct {
	App   string
	Title string
}

// ActivityProvider is the narrow contract the orchestrator needs from
// whatever desktop-presence agent is wired in. A deployment with no such
// agent can use NoopActivityProvider.
type ActivityProvider interface {
	Current(ctx context.Context, userID string) (Activity, error)
}

// NoopActivityProvider reports no activity signal. Every tick then treats
// the activity component of the context fingerprint as unchanged, and
// AFK/presence gating falls entirely on the Presence service.
type NoopActivityProvider struct{}

func (NoopActivityProvider) Current(ctx context.Context, userID string) (Activity, error) {
	return Activity{}, nil
}

// streak tracks how long a user has been on the same (app, title) pair.
type streak struct {
	app, title string
	since      time.Time
}

// streakTracker holds one streak per user across ticks.
type streakTracker struct {
	mu      sync.Mutex
	byUser  map[string]streak
}

func newStreakTracker() *streakTracker {
	return &streakTracker{byUser: map[string]streak{}}
}

// update folds a new activity reading into the user's streak, returning the
// accumulated duration on the current (app, title) pair.
func (t *streakTracker) update(userID string, a Activity, now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.byUser[userID]
	if !ok || cur.app != a.App || cur.title != a.Title {
		t.byUser[userID] = streak{app: a.App, title: a.Title, since: now}
		return 0
	}
	return now.Sub(cur.since)
}

// peek returns the last-known streak for userID without folding in a new
// reading, for read-only callers like the /activity/state endpoint.
func (t *streakTracker) peek(userID string, now time.Time) (Activity, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.byUser[userID]
	if !ok {
		return Activity{}, 0, false
	}
	return Activity{App: cur.app, Title: cur.title}, now.Sub(cur.since), true
}
