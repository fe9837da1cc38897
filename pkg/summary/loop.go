// Package summary runs the Session Summary Loop: it periodically condenses
// idle sessions, chains a rolling "summary of summaries" across the user's
// history, and folds the result into core memory. See Loop.RunOnce.
package summary

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/llm"
)

// Config tunes the loop's trigger condition and output shaping.
type Config struct {
	CheckInterval time.Duration // default 5 minutes
	IdleFor       time.Duration // default 30 minutes
	MinMessages   int           // default 5
	MaxInputChars int           // default 2000
	CoreCharLimit int           // default 8192
	RollingWindow int           // default 20 — sessions folded into one rolling summary pass
}

// DefaultConfig matches spec §4.4's stated defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 5 * time.Minute,
		IdleFor:       30 * time.Minute,
		MinMessages:   5,
		MaxInputChars: 2000,
		CoreCharLimit: 8192,
		RollingWindow: 20,
	}
}

// Loop is the Session Summary Loop. Callers either call RunOnce on their own
// schedule or Start/Stop the ticker-driven background loop; both paths go
// through the same in-process re-entry guard, so a manual trigger and the
// ticker can never summarize the same pass twice concurrently.
type Loop struct {
	db      *sql.DB
	llm     llm.Adapter
	cfg     Config
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(db *sql.DB, adapter llm.Adapter, cfg Config) *Loop {
	return &Loop{db: db, llm: adapter, cfg: cfg}
}

// Start launches the ticker-driven background loop. A second Start call
// while already running is a no-op.
func (l *Loop) Start(ctx context.Context) {
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx)
	slog.Info("summary loop started", "check_interval", l.cfg.CheckInterval, "idle_for", l.cfg.IdleFor)
}

// Stop signals the loop to exit and waits for the current pass to finish.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	slog.Info("summary loop stopped")
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.RunOnce(ctx, time.Now().UTC()); err != nil {
				slog.Error("summary loop pass failed", "error", err)
			}
		}
	}
}
