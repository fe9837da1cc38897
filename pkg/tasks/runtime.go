// Package tasks is the Work Queue & Task Runtime: at-most-once claim,
// bounded retry, and observability over background model jobs. See Runtime.
package tasks

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Config tunes retry and lease behavior.
type Config struct {
	MaxRetries     int           // default 3
	LeaseTimeout   time.Duration // default 10 minutes
	ReaperInterval time.Duration // default 1 minute; 0 disables the reaper loop
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, LeaseTimeout: 10 * time.Minute, ReaperInterval: time.Minute}
}

// Runtime is the Work Queue's client-facing surface: claim/complete/retry
// plus observability, backed by store.QueueStore. The reaper that returns
// abandoned leases to pending is optional (spec §4.5 says so explicitly);
// Runtime runs it when Config.ReaperInterval is nonzero.
type Runtime struct {
	db     *sql.DB
	queue  *store.QueueStore
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
}

func New(db *sql.DB, cfg Config) *Runtime {
	return &Runtime{db: db, queue: store.NewQueueStore(db), cfg: cfg}
}

// Enqueue submits a new pending job.
func (r *Runtime) Enqueue(ctx context.Context, taskType, modelName, content string, priority int, sessionID *string, metadata map[string]any) (string, error) {
	entry := &store.QueueEntry{
		ID:        uuid.NewString(),
		TaskType:  taskType,
		ModelName: modelName,
		Content:   content,
		Priority:  priority,
		SessionID: sessionID,
		Metadata:  metadata,
	}
	if err := r.queue.Enqueue(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Claim atomically claims the highest-priority pending job for modelName, or
// store.ErrNotClaimed if nothing is pending.
func (r *Runtime) Claim(ctx context.Context, modelName string, now time.Time) (*store.QueueEntry, error) {
	return r.queue.ClaimNext(ctx, r.db, modelName, now)
}

// Complete marks a claimed job done.
func (r *Runtime) Complete(ctx context.Context, id string, now time.Time) error {
	return r.queue.Complete(ctx, id, now)
}

// Retry records a failure. The job returns to pending if retry_count stays
// under MaxRetries, otherwise it's marked failed with reason as the last
// error_message.
func (r *Runtime) Retry(ctx context.Context, id, reason string, now time.Time) error {
	return r.queue.Fail(ctx, id, reason, r.cfg.MaxRetries, now)
}

// GetTask returns one job by id.
func (r *Runtime) GetTask(ctx context.Context, id string) (*store.QueueEntry, error) {
	return r.queue.GetTask(ctx, id)
}

// Stats returns counts by status and by model, plus the pending total.
func (r *Runtime) Stats(ctx context.Context) (store.QueueStats, error) {
	return r.queue.Stats(ctx)
}

// DeleteCompleted removes terminal rows older than age.
func (r *Runtime) DeleteCompleted(ctx context.Context, age time.Duration, now time.Time) (int64, error) {
	return r.queue.DeleteCompleted(ctx, now.Add(-age))
}

// StartReaper launches the lease reaper: jobs left in processing past
// LeaseTimeout are returned to pending. A zero ReaperInterval disables it —
// stuck tasks then stay visible only via Stats/GetTask, per spec.
func (r *Runtime) StartReaper(ctx context.Context) {
	if r.cfg.ReaperInterval <= 0 || r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.runReaper(ctx)
	slog.Info("task reaper started", "lease_timeout", r.cfg.LeaseTimeout, "interval", r.cfg.ReaperInterval)
}

// StopReaper signals the reaper to exit and waits for it to finish.
func (r *Runtime) StopReaper() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("task reaper stopped")
}

func (r *Runtime) runReaper(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reclaimAbandoned(ctx)
		}
	}
}

func (r *Runtime) reclaimAbandoned(ctx context.Context) {
	deadline := time.Now().Add(-r.cfg.LeaseTimeout)
	n, err := r.queue.ReclaimStale(ctx, deadline)
	if err != nil {
		slog.Error("task reaper: reclaim failed", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("task reaper: reclaimed abandoned jobs", "count", n)
	}
}
