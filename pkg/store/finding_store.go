package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindingStore is the data access layer for exploration findings and their
// per-session surfacing record.
type FindingStore struct {
	db Queryer
}

// NewFindingStore creates a FindingStore.
func NewFindingStore(db Queryer) *FindingStore {
	return &FindingStore{db: db}
}

// Create records a new finding discovered while exploring a task.
func (s *FindingStore) Create(ctx context.Context, f *ExplorationFinding) error {
	if f.ID == "" || f.UserID == "" || f.Summary == "" {
		return NewValidationError("summary", "id, user_id and summary are required")
	}
	meta, err := marshalJSONB(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal finding metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exploration_findings (id, user_id, task_id, working_dir, summary, detail, finding_type, confidence, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, f.ID, f.UserID, f.TaskID, f.WorkingDir, f.Summary, f.Detail, f.FindingType, f.Confidence, meta)
	if err != nil {
		return fmt.Errorf("create finding: %w", err)
	}
	return nil
}

// UnsurfacedForSession returns a user's findings that have not yet been
// surfaced in the given session, oldest first so older discoveries surface
// before newer ones.
func (s *FindingStore) UnsurfacedForSession(ctx context.Context, userID, sessionID string, limit int) ([]*ExplorationFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.user_id, f.task_id, f.working_dir, f.summary, f.detail, f.finding_type, f.confidence, f.metadata, f.created_at
		FROM exploration_findings f
		WHERE f.user_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM surfaced_findings sf WHERE sf.finding_id = f.id AND sf.session_id = $2
		  )
		ORDER BY f.created_at ASC
		LIMIT $3
	`, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsurfaced findings: %w", err)
	}
	defer rows.Close()

	var out []*ExplorationFinding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanFinding(row rowScanner) (*ExplorationFinding, error) {
	var f ExplorationFinding
	var meta []byte
	err := row.Scan(&f.ID, &f.UserID, &f.TaskID, &f.WorkingDir, &f.Summary, &f.Detail, &f.FindingType, &f.Confidence, &meta, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan finding: %w", err)
	}
	if f.Metadata, err = unmarshalJSONB(meta); err != nil {
		return nil, err
	}
	return &f, nil
}

// MarkSurfaced records that a finding was shown in a session. Enforced
// at-most-once by the (finding_id, session_id) unique index: a duplicate
// call is treated as a no-op rather than an error.
func (s *FindingStore) MarkSurfaced(ctx context.Context, findingID, sessionID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO surfaced_findings (id, finding_id, session_id, surfaced_at, acknowledged)
		VALUES ($1,$2,$3,$4,false)
		ON CONFLICT (finding_id, session_id) DO NOTHING
	`, newID(), findingID, sessionID, now)
	if err != nil {
		return fmt.Errorf("mark finding surfaced: %w", err)
	}
	return nil
}

// Acknowledge records that the user acted on or dismissed a surfaced
// finding.
func (s *FindingStore) Acknowledge(ctx context.Context, findingID, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE surfaced_findings SET acknowledged = true WHERE finding_id = $1 AND session_id = $2
	`, findingID, sessionID)
	if err != nil {
		return fmt.Errorf("acknowledge finding: %w", err)
	}
	return checkRowsAffected(res)
}

// ScratchpadStore is the data access layer for key/value state shared by
// the members of a swarm of cooperating sessions.
type ScratchpadStore struct {
	db Queryer
}

// NewScratchpadStore creates a ScratchpadStore.
func NewScratchpadStore(db Queryer) *ScratchpadStore {
	return &ScratchpadStore{db: db}
}

// Put upserts a key's value within a swarm's scratchpad.
func (s *ScratchpadStore) Put(ctx context.Context, swarmID, key string, value map[string]any, writtenBy string, now time.Time) error {
	v, err := marshalJSONB(value)
	if err != nil {
		return fmt.Errorf("marshal scratchpad value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO swarm_scratchpad (id, swarm_id, key, value, written_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (swarm_id, key) DO UPDATE SET
			value = EXCLUDED.value, written_by = EXCLUDED.written_by, updated_at = EXCLUDED.updated_at
	`, newID(), swarmID, key, v, writtenBy, now)
	if err != nil {
		return fmt.Errorf("put scratchpad entry: %w", err)
	}
	return nil
}

// Get fetches a single key from a swarm's scratchpad.
func (s *ScratchpadStore) Get(ctx context.Context, swarmID, key string) (*ScratchpadEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, swarm_id, key, value, written_by, created_at, updated_at
		FROM swarm_scratchpad WHERE swarm_id = $1 AND key = $2
	`, swarmID, key)
	var e ScratchpadEntry
	var v []byte
	err := row.Scan(&e.ID, &e.SwarmID, &e.Key, &v, &e.WrittenBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan scratchpad entry: %w", err)
	}
	if e.Value, err = unmarshalJSONB(v); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListForSwarm returns every key currently held in a swarm's scratchpad.
func (s *ScratchpadStore) ListForSwarm(ctx context.Context, swarmID string) ([]*ScratchpadEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, swarm_id, key, value, written_by, created_at, updated_at
		FROM swarm_scratchpad WHERE swarm_id = $1 ORDER BY key ASC
	`, swarmID)
	if err != nil {
		return nil, fmt.Errorf("list scratchpad: %w", err)
	}
	defer rows.Close()

	var out []*ScratchpadEntry
	for rows.Next() {
		var e ScratchpadEntry
		var v []byte
		if err := rows.Scan(&e.ID, &e.SwarmID, &e.Key, &v, &e.WrittenBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scratchpad entry: %w", err)
		}
		if e.Value, err = unmarshalJSONB(v); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
