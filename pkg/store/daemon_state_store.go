package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DaemonStateStore is the data access layer for the orchestrator's
// persisted per-user engagement state, the raw input to the derived-state
// function that decides whether the daemon should act.
type DaemonStateStore struct {
	db Queryer
}

// NewDaemonStateStore creates a DaemonStateStore.
func NewDaemonStateStore(db Queryer) *DaemonStateStore {
	return &DaemonStateStore{db: db}
}

// GetOrCreate fetches a user's daemon state, creating a zeroed row on first
// use.
func (s *DaemonStateStore) GetOrCreate(ctx context.Context, db *sql.DB, userID string, now time.Time) (*DaemonState, error) {
	state, err := s.Get(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO daemon_state (user_id, active_session_count, updated_at) VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("create daemon state: %w", err)
	}
	return s.Get(ctx, userID)
}

// Get fetches a user's daemon state.
func (s *DaemonStateStore) Get(ctx context.Context, userID string) (*DaemonState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, idle_since, last_engagement_at, cooldown_until, active_session_count, last_exploration_at, updated_at
		FROM daemon_state WHERE user_id = $1
	`, userID)
	var d DaemonState
	err := row.Scan(&d.UserID, &d.IdleSince, &d.LastEngagementAt, &d.CooldownUntil, &d.ActiveSessionCount, &d.LastExplorationAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan daemon state: %w", err)
	}
	return &d, nil
}

// SetIdleSince records when a user's active session count last dropped to
// zero.
func (s *DaemonStateStore) SetIdleSince(ctx context.Context, userID string, idleSince *time.Time, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daemon_state SET idle_since = $2, updated_at = $3 WHERE user_id = $1
	`, userID, idleSince, now)
	if err != nil {
		return fmt.Errorf("set idle_since: %w", err)
	}
	return nil
}

// RecordEngagement stamps the last time the daemon proactively engaged a
// user and starts its cooldown window.
func (s *DaemonStateStore) RecordEngagement(ctx context.Context, userID string, now, cooldownUntil time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daemon_state SET last_engagement_at = $2, cooldown_until = $3, updated_at = $2 WHERE user_id = $1
	`, userID, now, cooldownUntil)
	if err != nil {
		return fmt.Errorf("record engagement: %w", err)
	}
	return nil
}

// RecordExploration stamps the last time an exploration task ran for a
// user, used to pace how often the curiosity pipeline kicks off new work.
func (s *DaemonStateStore) RecordExploration(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daemon_state SET last_exploration_at = $2, updated_at = $2 WHERE user_id = $1
	`, userID, now)
	if err != nil {
		return fmt.Errorf("record exploration: %w", err)
	}
	return nil
}

// SetActiveSessionCount updates the live session count backing the
// derived-state function, incrementing on session start and decrementing
// on session end.
func (s *DaemonStateStore) SetActiveSessionCount(ctx context.Context, userID string, delta int, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		UPDATE daemon_state SET
			active_session_count = GREATEST(0, active_session_count + $2),
			updated_at = $3
		WHERE user_id = $1
		RETURNING active_session_count
	`, userID, delta, now).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("update active session count: %w", err)
	}
	return count, nil
}
