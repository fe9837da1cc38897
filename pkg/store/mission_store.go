package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MissionStore is the data access layer for standing missions and their
// execution history.
type MissionStore struct {
	db Queryer
}

// NewMissionStore creates a MissionStore.
func NewMissionStore(db Queryer) *MissionStore {
	return &MissionStore{db: db}
}

// Create inserts a new mission.
func (s *MissionStore) Create(ctx context.Context, m *Mission) error {
	if m.ID == "" || m.UserID == "" || m.Name == "" {
		return NewValidationError("name", "id, user_id and name are required")
	}
	config, err := marshalJSONB(m.Config)
	if err != nil {
		return fmt.Errorf("marshal mission config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO missions (id, user_id, name, description, repo_owner, repo_name, issue_number, status, config)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'active',$8)
	`, m.ID, m.UserID, m.Name, m.Description, m.RepoOwner, m.RepoName, m.IssueNumber, config)
	if err != nil {
		return fmt.Errorf("create mission: %w", err)
	}
	return nil
}

// Get fetches a mission by id.
func (s *MissionStore) Get(ctx context.Context, id string) (*Mission, error) {
	row := s.db.QueryRowContext(ctx, missionSelect+` WHERE id = $1`, id)
	return scanMission(row)
}

// ListActiveForUser returns a user's active missions.
func (s *MissionStore) ListActiveForUser(ctx context.Context, userID string) ([]*Mission, error) {
	rows, err := s.db.QueryContext(ctx, missionSelect+` WHERE user_id = $1 AND status = 'active' ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active missions: %w", err)
	}
	defer rows.Close()

	var out []*Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetStatus updates a mission's lifecycle status.
func (s *MissionStore) SetStatus(ctx context.Context, id, status string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE missions SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
	if err != nil {
		return fmt.Errorf("set mission status: %w", err)
	}
	return checkRowsAffected(res)
}

const missionSelect = `
	SELECT id, user_id, name, description, repo_owner, repo_name, issue_number, status, config, created_at, updated_at
	FROM missions`

func scanMission(row rowScanner) (*Mission, error) {
	var m Mission
	var config []byte
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Description, &m.RepoOwner, &m.RepoName, &m.IssueNumber,
		&m.Status, &config, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan mission: %w", err)
	}
	if m.Config, err = unmarshalJSONB(config); err != nil {
		return nil, err
	}
	return &m, nil
}

// StartExecution records the start of a mission run.
func (s *MissionStore) StartExecution(ctx context.Context, e *MissionExecution) error {
	if e.ID == "" || e.MissionID == "" {
		return NewValidationError("mission_id", "id and mission_id are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mission_executions (id, mission_id, session_id, trigger, status, started_at)
		VALUES ($1,$2,$3,$4,'running',$5)
	`, e.ID, e.MissionID, e.SessionID, e.Trigger, e.StartedAt)
	if err != nil {
		return fmt.Errorf("start mission execution: %w", err)
	}
	return nil
}

// FinishExecution records the terminal state of a mission run.
func (s *MissionStore) FinishExecution(ctx context.Context, id, status, resultSummary, errMsg string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mission_executions SET status = $2, result_summary = $3, error_message = $4, finished_at = $5
		WHERE id = $1
	`, id, status, nullableString(resultSummary), nullableString(errMsg), now)
	if err != nil {
		return fmt.Errorf("finish mission execution: %w", err)
	}
	return checkRowsAffected(res)
}

// ListRecentExecutions returns a mission's most recent executions, newest
// first.
func (s *MissionStore) ListRecentExecutions(ctx context.Context, missionID string, limit int) ([]*MissionExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mission_id, session_id, trigger, status, result_summary, error_message, started_at, finished_at
		FROM mission_executions WHERE mission_id = $1 ORDER BY started_at DESC LIMIT $2
	`, missionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list mission executions: %w", err)
	}
	defer rows.Close()

	var out []*MissionExecution
	for rows.Next() {
		var e MissionExecution
		if err := rows.Scan(&e.ID, &e.MissionID, &e.SessionID, &e.Trigger, &e.Status,
			&e.ResultSummary, &e.ErrorMessage, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan mission execution: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
