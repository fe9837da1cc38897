package orchestrator

import (
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// State is the Ambient Orchestrator's derived engagement state. It is never
// stored directly — only its inputs (DaemonState, active_session_count) are
// persisted — so the rule stays a pure function and can't drift from the DB.
type State string

const (
	StateEngaged   State = "engaged"
	StateSuppressed State = "suppressed"
	StateIdle      State = "idle"
	StateAvailable State = "available"
)

// IdleThreshold is how long since the last interaction before a user counts
// as idle, absent any active session or suppression.
const IdleThreshold = 15 * time.Minute

// Derive computes State from a user's persisted DaemonState and their
// current active session count, evaluated at now. Order matters: an active
// session always wins over suppression or idleness.
func Derive(d *store.DaemonState, activeSessionCount int, now time.Time) State {
	if activeSessionCount > 0 {
		return StateEngaged
	}
	if d.CooldownUntil != nil && now.Before(*d.CooldownUntil) {
		return StateSuppressed
	}
	lastInteraction := d.LastEngagementAt
	if lastInteraction == nil {
		lastInteraction = d.IdleSince
	}
	if lastInteraction != nil && now.Sub(*lastInteraction) >= IdleThreshold {
		return StateIdle
	}
	return StateAvailable
}
