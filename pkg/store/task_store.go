package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ProjectTaskStore is the data access layer for curiosity-surfaced and
// user-created project tasks.
type ProjectTaskStore struct {
	db Queryer
}

// NewProjectTaskStore creates a ProjectTaskStore.
func NewProjectTaskStore(db Queryer) *ProjectTaskStore {
	return &ProjectTaskStore{db: db}
}

// Upsert inserts a new task, or — if a task with the same (user_id,
// title_key) already exists — bumps its priority and last_triggered_at
// instead of creating a duplicate backlog entry. This is the curiosity
// pipeline's repeat-signal bonus at the storage layer.
func (s *ProjectTaskStore) Upsert(ctx context.Context, t *ProjectTask, now time.Time) (created bool, err error) {
	if t.ID == "" || t.UserID == "" || t.Title == "" {
		return false, NewValidationError("title", "id, user_id and title are required")
	}
	titleKey := strings.ToLower(strings.TrimSpace(t.Title))

	extra, err := marshalJSONB(t.Extra)
	if err != nil {
		return false, fmt.Errorf("marshal extra: %w", err)
	}

	var inserted bool
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO project_tasks (
			id, user_id, working_dir, title, title_key, description, acceptance,
			scope_paths, required_tools, task_type, tags, priority, status, extra,
			created_at, updated_at, last_triggered_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15,$15)
		ON CONFLICT (user_id, title_key) DO UPDATE SET
			priority = LEAST(100, project_tasks.priority + 5),
			last_triggered_at = EXCLUDED.last_triggered_at,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`, t.ID, t.UserID, t.WorkingDir, t.Title, titleKey, t.Description, t.Acceptance,
		pq.Array(t.ScopePaths), pq.Array(t.RequiredTools), t.TaskType, pq.Array(t.Tags),
		t.Priority, TaskStatusBacklog, extra, now).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert project task: %w", err)
	}
	return inserted, nil
}

// Get fetches a task by id.
func (s *ProjectTaskStore) Get(ctx context.Context, id string) (*ProjectTask, error) {
	row := s.db.QueryRowContext(ctx, projectTaskSelect+` WHERE id = $1`, id)
	return scanProjectTask(row)
}

// GetByTitleKeyForUpdate fetches a task by its curiosity upsert key
// (user_id, lower(title)), row-locking it so a caller can read-then-write
// without racing another writer for the same user. Call within a
// transaction that has already taken LockUser.
func (s *ProjectTaskStore) GetByTitleKeyForUpdate(ctx context.Context, userID, titleKey string) (*ProjectTask, error) {
	row := s.db.QueryRowContext(ctx, projectTaskSelect+`
		WHERE user_id = $1 AND title_key = $2 FOR UPDATE
	`, userID, titleKey)
	return scanProjectTask(row)
}

// LockUser takes a transaction-scoped advisory lock keyed on userID, so
// that concurrent ingests for the same user (from different mediums) are
// serialized while concurrent ingests for different users proceed in
// parallel. Must be called inside a transaction; the lock is released
// automatically on commit or rollback.
func LockUser(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	return nil
}

// Insert creates a new project task. Unlike Upsert, it does not attempt
// conflict handling — callers that already hold a LockUser lock and have
// confirmed no existing (user_id, title_key) row via GetByTitleKeyForUpdate
// can't race another writer for the same user.
func (s *ProjectTaskStore) Insert(ctx context.Context, t *ProjectTask, now time.Time) error {
	if t.ID == "" || t.UserID == "" || t.Title == "" {
		return NewValidationError("title", "id, user_id and title are required")
	}
	titleKey := strings.ToLower(strings.TrimSpace(t.Title))
	extra, err := marshalJSONB(t.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}
	status := t.Status
	if status == "" {
		status = TaskStatusBacklog
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_tasks (
			id, user_id, working_dir, title, title_key, description, acceptance,
			scope_paths, required_tools, task_type, tags, priority, status, extra,
			created_at, updated_at, last_triggered_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15,$15)
	`, t.ID, t.UserID, t.WorkingDir, t.Title, titleKey, t.Description, t.Acceptance,
		pq.Array(t.ScopePaths), pq.Array(t.RequiredTools), t.TaskType, pq.Array(t.Tags),
		t.Priority, status, extra, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert project task: %w", err)
	}
	return nil
}

// UpdateFromSignal applies a re-trigger of an existing pending task:
// priority bumped monotonically, trigger/priority bookkeeping merged into
// extra, and last_triggered_at stamped.
func (s *ProjectTaskStore) UpdateFromSignal(ctx context.Context, id string, priority int, extra map[string]any, now time.Time) error {
	extraJSON, err := marshalJSONB(extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_tasks SET
			priority = GREATEST(priority, $2),
			extra = $3,
			last_triggered_at = $4,
			updated_at = $4
		WHERE id = $1
	`, id, priority, extraJSON, now)
	if err != nil {
		return fmt.Errorf("update project task from signal: %w", err)
	}
	return checkRowsAffected(res)
}

// ListPendingForUser returns a user's pending tasks (backlog ⇔ status ∈
// {backlog, ready, blocked}) ordered oldest-effective-time-first, for
// backlog invariant enforcement (count caps, TTL/priority pruning).
func (s *ProjectTaskStore) ListPendingForUser(ctx context.Context, userID string) ([]*ProjectTask, error) {
	rows, err := s.db.QueryContext(ctx, projectTaskSelect+`
		WHERE user_id = $1 AND status IN ('backlog', 'ready', 'blocked')
		ORDER BY COALESCE(last_triggered_at, created_at) ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var out []*ProjectTask
	for rows.Next() {
		t, err := scanProjectTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune cancels a pending task for exceeding a backlog invariant (count cap,
// TTL, or priority floor). detail is the specific invariant that tripped
// (e.g. "ttl expired") and is recorded in last_error; extra.pruned_reason is
// always the fixed "backlog_limits" marker so anything reading the task back
// can recognize a backlog-driven cancellation without parsing last_error.
func (s *ProjectTaskStore) Prune(ctx context.Context, id, detail string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_tasks SET
			status = 'cancelled',
			last_error = $2,
			extra = jsonb_set(extra, '{pruned_reason}', '"backlog_limits"'::jsonb),
			updated_at = $3
		WHERE id = $1
	`, id, detail, now)
	if err != nil {
		return fmt.Errorf("prune project task: %w", err)
	}
	return checkRowsAffected(res)
}

// CountPendingForUser counts tasks not yet done/cancelled for a user
// (in_progress included); the orchestrator reads it as pending work.
func (s *ProjectTaskStore) CountPendingForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM project_tasks
		WHERE user_id = $1 AND status NOT IN ('done', 'cancelled')
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return n, nil
}

// CountPendingForType counts a user's tasks of a given type not yet
// done/cancelled, used by the exploration kickoff's backlog check.
func (s *ProjectTaskStore) CountPendingForType(ctx context.Context, userID, taskType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM project_tasks
		WHERE user_id = $1 AND task_type = $2 AND status NOT IN ('done', 'cancelled')
	`, userID, taskType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks by type: %w", err)
	}
	return n, nil
}

// CountStartedSince counts a user's tasks of a given type whose started_at
// falls on or after cutoff, regardless of current status — used to enforce
// a rolling (e.g. daily) cap on how often a task type may run.
func (s *ProjectTaskStore) CountStartedSince(ctx context.Context, userID, taskType string, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM project_tasks
		WHERE user_id = $1 AND task_type = $2 AND started_at >= $3
	`, userID, taskType, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks started since: %w", err)
	}
	return n, nil
}

// ClaimNext atomically selects and claims the highest-priority ready task
// for a user that is not already claimed, skipping rows locked by a
// concurrent claimant rather than blocking on them.
func (s *ProjectTaskStore) ClaimNext(ctx context.Context, db *sql.DB, userID, sessionID, agentID string, now time.Time) (*ProjectTask, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, projectTaskSelect+`
		WHERE user_id = $1 AND status = 'ready' AND claim_session_id IS NULL
		ORDER BY priority DESC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, userID)
	task, err := scanProjectTask(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotClaimed
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE project_tasks SET
			status = 'in_progress', claim_session_id = $2, claim_agent_id = $3,
			claimed_at = $4, attempt_count = attempt_count + 1, started_at = COALESCE(started_at, $4),
			updated_at = $4
		WHERE id = $1
	`, task.ID, sessionID, agentID, now)
	if err != nil {
		return nil, fmt.Errorf("claim project task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	task.Status = TaskStatusInProgress
	task.ClaimSessionID = &sessionID
	task.ClaimAgentID = &agentID
	task.ClaimedAt = &now
	return task, nil
}

// Release clears a claim without marking the task done, returning it to
// ready so another runner can pick it up. Used on lease expiry.
func (s *ProjectTaskStore) Release(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_tasks SET
			status = 'ready', claim_session_id = NULL, claim_agent_id = NULL,
			claimed_at = NULL, updated_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("release project task: %w", err)
	}
	return checkRowsAffected(res)
}

// Complete marks a task done, recording its outcome, notes and changed files.
func (s *ProjectTaskStore) Complete(ctx context.Context, id, outcome, notes string, filesChanged []string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_tasks SET
			status = 'done', outcome = $2, completion_notes = $3, files_changed = $4,
			completed_at = $5, updated_at = $5
		WHERE id = $1
	`, id, outcome, notes, pq.Array(filesChanged), now)
	if err != nil {
		return fmt.Errorf("complete project task: %w", err)
	}
	return checkRowsAffected(res)
}

const projectTaskSelect = `
	SELECT id, user_id, working_dir, title, title_key, description, acceptance,
	       scope_paths, required_tools, task_type, tags, priority, status,
	       claim_session_id, claim_agent_id, claimed_at, attempt_count,
	       blocked_by, related_task_ids, outcome, completion_notes, files_changed,
	       last_error, extra, created_at, updated_at, started_at, completed_at, last_triggered_at
	FROM project_tasks`

func scanProjectTask(row rowScanner) (*ProjectTask, error) {
	var t ProjectTask
	var extra []byte
	err := row.Scan(
		&t.ID, &t.UserID, &t.WorkingDir, &t.Title, &t.TitleKey, &t.Description, &t.Acceptance,
		pq.Array(&t.ScopePaths), pq.Array(&t.RequiredTools), &t.TaskType, pq.Array(&t.Tags), &t.Priority, &t.Status,
		&t.ClaimSessionID, &t.ClaimAgentID, &t.ClaimedAt, &t.AttemptCount,
		pq.Array(&t.BlockedBy), pq.Array(&t.RelatedTaskIDs), &t.Outcome, &t.CompletionNotes, pq.Array(&t.FilesChanged),
		&t.LastError, &extra, &t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.CompletedAt, &t.LastTriggeredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan project task: %w", err)
	}
	if t.Extra, err = unmarshalJSONB(extra); err != nil {
		return nil, err
	}
	return &t, nil
}

// QueueStore is the data access layer for short-lived model/LLM jobs. These
// are distinct from ProjectTask: a queue entry backs one curiosity
// detection pass, fact extraction call, or summary generation, not
// user-visible work.
type QueueStore struct {
	db Queryer
}

// NewQueueStore creates a QueueStore.
func NewQueueStore(db Queryer) *QueueStore {
	return &QueueStore{db: db}
}

// Enqueue inserts a new pending queue entry.
func (s *QueueStore) Enqueue(ctx context.Context, e *QueueEntry) error {
	if e.ID == "" || e.TaskType == "" || e.ModelName == "" {
		return NewValidationError("task_type", "id, task_type and model_name are required")
	}
	meta, err := marshalJSONB(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_queue (id, task_type, model_name, content, metadata, priority, status, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',$7)
	`, e.ID, e.TaskType, e.ModelName, e.Content, meta, e.Priority, e.SessionID)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// ClaimNext claims the highest-priority (lowest value) pending entry for a
// given model, skipping rows a concurrent worker already holds.
func (s *QueueStore) ClaimNext(ctx context.Context, db *sql.DB, modelName string, now time.Time) (*QueueEntry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, task_type, model_name, content, metadata, priority, status, session_id,
		       retry_count, error_message, created_at, processed_at
		FROM task_queue
		WHERE model_name = $1 AND status = 'pending'
		ORDER BY priority ASC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, modelName)
	e, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotClaimed
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE task_queue SET status = 'processing', processed_at = $2 WHERE id = $1
	`, e.ID, now); err != nil {
		return nil, fmt.Errorf("claim queue entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	e.Status = QueueStatusProcessing
	e.ProcessedAt = &now
	return e, nil
}

// Complete marks an entry completed.
func (s *QueueStore) Complete(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE task_queue SET status = 'completed', processed_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("complete queue entry: %w", err)
	}
	return checkRowsAffected(res)
}

// Fail marks an entry failed, or returns it to pending if retries remain.
func (s *QueueStore) Fail(ctx context.Context, id, errMsg string, maxRetries int, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			retry_count = retry_count + 1,
			error_message = $2,
			processed_at = $4
		WHERE id = $1
	`, id, errMsg, maxRetries, now)
	if err != nil {
		return fmt.Errorf("fail queue entry: %w", err)
	}
	return checkRowsAffected(res)
}

// ReclaimStale returns entries stuck in processing past the given deadline
// back to pending, recovering from a worker that died mid-job.
func (s *QueueStore) ReclaimStale(ctx context.Context, deadline time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_queue SET status = 'pending'
		WHERE status = 'processing' AND processed_at < $1
	`, deadline)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale queue entries: %w", err)
	}
	return res.RowsAffected()
}

// GetTask fetches one queue entry by id.
func (s *QueueStore) GetTask(ctx context.Context, id string) (*QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_type, model_name, content, metadata, priority, status, session_id,
		       retry_count, error_message, created_at, processed_at
		FROM task_queue WHERE id = $1
	`, id)
	return scanQueueEntry(row)
}

// QueueStats is stats()'s response: counts grouped by status, by model, and
// the overall pending total.
type QueueStats struct {
	ByStatus       map[string]int
	ByModel        map[string]int
	PendingTotal   int
}

// Stats returns counts grouped by status and by model_name.
func (s *QueueStore) Stats(ctx context.Context) (QueueStats, error) {
	stats := QueueStats{ByStatus: map[string]int{}, ByModel: map[string]int{}}

	statusRows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM task_queue GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("queue stats by status: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var n int
		if err := statusRows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("scan queue status count: %w", err)
		}
		stats.ByStatus[status] = n
		if status == QueueStatusPending {
			stats.PendingTotal = n
		}
	}
	if err := statusRows.Err(); err != nil {
		return stats, err
	}

	modelRows, err := s.db.QueryContext(ctx, `SELECT model_name, count(*) FROM task_queue GROUP BY model_name`)
	if err != nil {
		return stats, fmt.Errorf("queue stats by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var model string
		var n int
		if err := modelRows.Scan(&model, &n); err != nil {
			return stats, fmt.Errorf("scan queue model count: %w", err)
		}
		stats.ByModel[model] = n
	}
	return stats, modelRows.Err()
}

// DeleteCompleted removes terminal (completed or failed) rows processed
// before the cutoff, returning how many rows were deleted.
func (s *QueueStore) DeleteCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM task_queue
		WHERE status IN ('completed','failed') AND processed_at IS NOT NULL AND processed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed queue entries: %w", err)
	}
	return res.RowsAffected()
}

func scanQueueEntry(row rowScanner) (*QueueEntry, error) {
	var e QueueEntry
	var meta []byte
	err := row.Scan(&e.ID, &e.TaskType, &e.ModelName, &e.Content, &meta, &e.Priority, &e.Status,
		&e.SessionID, &e.RetryCount, &e.ErrorMessage, &e.CreatedAt, &e.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	if e.Metadata, err = unmarshalJSONB(meta); err != nil {
		return nil, err
	}
	return &e, nil
}
