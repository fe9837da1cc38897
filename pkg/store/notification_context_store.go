package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NotificationContextSnapshot is the context-fingerprint blob the Ambient
// Orchestrator saves at delivery time (step 7 of checkAndEngage) and reads
// back on the next tick to decide whether context has changed enough to be
// worth a fresh engagement. The fingerprint shape itself belongs to the
// orchestrator; this store only round-trips it as JSON.
type NotificationContextSnapshot struct {
	UserID      string
	Fingerprint json.RawMessage
	CreatedAt   time.Time
}

// NotificationContextStore is the data access layer for per-user
// notification_context snapshots.
type NotificationContextStore struct {
	db Queryer
}

// NewNotificationContextStore creates a NotificationContextStore.
func NewNotificationContextStore(db Queryer) *NotificationContextStore {
	return &NotificationContextStore{db: db}
}

// Save upserts the latest fingerprint snapshot for a user, overwriting
// whatever was saved on a prior tick — only the most recent snapshot is
// ever compared against.
func (s *NotificationContextStore) Save(ctx context.Context, userID string, fingerprint json.RawMessage, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_context (user_id, fingerprint, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET fingerprint = $2, created_at = $3
	`, userID, []byte(fingerprint), now)
	if err != nil {
		return fmt.Errorf("save notification context: %w", err)
	}
	return nil
}

// Latest returns a user's most recently saved fingerprint snapshot, or
// ErrNotFound if none has been saved yet.
func (s *NotificationContextStore) Latest(ctx context.Context, userID string) (*NotificationContextSnapshot, error) {
	var snap NotificationContextSnapshot
	snap.UserID = userID
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, created_at FROM notification_context WHERE user_id = $1
	`, userID)
	if err := row.Scan(&snap.Fingerprint, &snap.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load notification context: %w", err)
	}
	return &snap, nil
}
