package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionStore is the data access layer for sessions.
type SessionStore struct {
	db Queryer
}

// NewSessionStore creates a SessionStore over db, which may be a *sql.DB or
// a *sql.Tx.
func NewSessionStore(db Queryer) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return NewValidationError("id", "required")
	}
	if sess.UserID == "" {
		return NewValidationError("user_id", "required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, working_dir, start_time, last_activity,
			continued_from, medium, personality, sandbox_policy, mission_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sess.ID, sess.UserID, sess.WorkingDir, sess.StartTime, sess.LastActivity,
		sess.ContinuedFromID, sess.Medium, sess.Personality, sess.SandboxPolicy, sess.MissionID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// EnsureSession idempotently creates a session: insert on conflict by
// primary key do nothing, then read back. This tolerates concurrent
// first-message races from multiple frontends hitting the same session id.
func (s *SessionStore) EnsureSession(ctx context.Context, sess *Session) (*Session, error) {
	if sess.ID == "" {
		return nil, NewValidationError("id", "required")
	}
	if sess.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, working_dir, start_time, last_activity,
			continued_from, medium, personality, sandbox_policy, mission_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, sess.ID, sess.UserID, sess.WorkingDir, sess.StartTime, sess.LastActivity,
		sess.ContinuedFromID, sess.Medium, sess.Personality, sess.SandboxPolicy, sess.MissionID)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	return s.Get(ctx, sess.ID)
}

// Get fetches a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, working_dir, start_time, end_time, last_activity,
		       continued_from, medium, personality, sandbox_policy, mission_id,
		       summary, summary_updated_at, claude_session_id, created_at
		FROM sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

// TouchActivity bumps last_activity to now, used on every ingested turn.
func (s *SessionStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch session activity: %w", err)
	}
	return checkRowsAffected(res)
}

// SetClaudeSessionID links a session to the Claude Code CLI session that is
// driving it, so a later resume can hand the CLI back its own session id.
func (s *SessionStore) SetClaudeSessionID(ctx context.Context, id, claudeSessionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET claude_session_id = $2 WHERE id = $1`, id, claudeSessionID)
	if err != nil {
		return fmt.Errorf("set claude session id: %w", err)
	}
	return checkRowsAffected(res)
}

// Close sets end_time, marking the session no longer active.
func (s *SessionStore) Close(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET end_time = $2 WHERE id = $1 AND end_time IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return checkRowsAffected(res)
}

// UpdateSummary stores a generated session summary.
func (s *SessionStore) UpdateSummary(ctx context.Context, id, summary string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET summary = $2, summary_updated_at = $3 WHERE id = $1
	`, id, summary, at)
	if err != nil {
		return fmt.Errorf("update session summary: %w", err)
	}
	return checkRowsAffected(res)
}

// ListOpenForUser returns sessions for a user that have not been closed,
// ordered by most recently active first.
func (s *SessionStore) ListOpenForUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, working_dir, start_time, end_time, last_activity,
		       continued_from, medium, personality, sandbox_policy, mission_id,
		       summary, summary_updated_at, claude_session_id, created_at
		FROM sessions WHERE user_id = $1 AND end_time IS NULL
		ORDER BY last_activity DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// IdleSince returns the most recent last_activity across a user's open
// sessions, or zero time if none are open.
func (s *SessionStore) IdleSince(ctx context.Context, userID string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(last_activity) FROM sessions WHERE user_id = $1 AND end_time IS NULL
	`, userID).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("idle since: %w", err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// DistinctUserIDs returns every user id with at least one session, the
// default user set for the Ambient Orchestrator's per-tick sweep.
func (s *SessionStore) DistinctUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("distinct user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListDueForSummary returns sessions meeting the Session Summary Loop's
// trigger condition: active within the last 24h, idle at least idleFor,
// still open, and either never summarized or summarized before their last
// activity.
func (s *SessionStore) ListDueForSummary(ctx context.Context, now time.Time, idleFor time.Duration) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, working_dir, start_time, end_time, last_activity,
		       continued_from, medium, personality, sandbox_policy, mission_id,
		       summary, summary_updated_at, claude_session_id, created_at
		FROM sessions
		WHERE end_time IS NULL
		  AND last_activity >= $1
		  AND last_activity <= $2
		  AND (summary IS NULL OR summary_updated_at < last_activity)
		ORDER BY last_activity ASC
	`, now.Add(-24*time.Hour), now.Add(-idleFor))
	if err != nil {
		return nil, fmt.Errorf("list sessions due for summary: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ListRecentlySummarized returns a user's sessions with the most recent
// summary_updated_at, newest first, bounded by limit. Used by the rolling
// "summary of summaries" pass to find candidate sessions to fold in.
func (s *SessionStore) ListRecentlySummarized(ctx context.Context, userID string, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, working_dir, start_time, end_time, last_activity,
		       continued_from, medium, personality, sandbox_policy, mission_id,
		       summary, summary_updated_at, claude_session_id, created_at
		FROM sessions
		WHERE user_id = $1 AND summary_updated_at IS NOT NULL
		ORDER BY summary_updated_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recently summarized sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.WorkingDir, &sess.StartTime, &sess.EndTime, &sess.LastActivity,
		&sess.ContinuedFromID, &sess.Medium, &sess.Personality, &sess.SandboxPolicy, &sess.MissionID,
		&sess.Summary, &sess.SummaryUpdatedAt, &sess.ClaudeSessionID, &sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &sess, nil
}

func scanSessionRows(rows *sql.Rows) (*Session, error) {
	return scanSession(rows)
}
