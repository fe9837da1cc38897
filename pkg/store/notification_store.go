package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NotificationStore is the data access layer for daemon-initiated
// notifications destined for a user through some medium.
type NotificationStore struct {
	db Queryer
}

// NewNotificationStore creates a NotificationStore.
func NewNotificationStore(db Queryer) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create files a new pending notification.
func (s *NotificationStore) Create(ctx context.Context, n *AmbientNotification) error {
	if n.ID == "" || n.UserID == "" || n.Medium == "" || n.Kind == "" {
		return NewValidationError("kind", "id, user_id, medium and kind are required")
	}
	meta, err := marshalJSONB(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ambient_notifications (id, user_id, session_id, medium, kind, title, body, metadata, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'pending')
	`, n.ID, n.UserID, n.SessionID, n.Medium, n.Kind, n.Title, n.Body, meta)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListPendingForUser returns notifications not yet delivered for a user.
func (s *NotificationStore) ListPendingForUser(ctx context.Context, userID string) ([]*AmbientNotification, error) {
	rows, err := s.db.QueryContext(ctx, notificationSelect+`
		WHERE user_id = $1 AND status = 'pending' ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*AmbientNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkDelivered transitions a notification from pending to delivered.
func (s *NotificationStore) MarkDelivered(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ambient_notifications SET status = 'delivered', delivered_at = $2 WHERE id = $1 AND status = 'pending'
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return checkRowsAffected(res)
}

// MarkAcknowledged transitions a delivered notification to acknowledged.
func (s *NotificationStore) MarkAcknowledged(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ambient_notifications SET status = 'acknowledged', acknowledged_at = $2 WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("mark notification acknowledged: %w", err)
	}
	return checkRowsAffected(res)
}

// Suppress marks a notification suppressed instead of delivering it, used
// when presence routing decides the target medium is unreachable and the
// notification shouldn't be retried on that medium.
func (s *NotificationStore) Suppress(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ambient_notifications SET status = 'suppressed' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("suppress notification: %w", err)
	}
	return checkRowsAffected(res)
}

const notificationSelect = `
	SELECT id, user_id, session_id, medium, kind, title, body, metadata, status, created_at, delivered_at, acknowledged_at
	FROM ambient_notifications`

func scanNotification(row rowScanner) (*AmbientNotification, error) {
	var n AmbientNotification
	var meta []byte
	err := row.Scan(&n.ID, &n.UserID, &n.SessionID, &n.Medium, &n.Kind, &n.Title, &n.Body, &meta,
		&n.Status, &n.CreatedAt, &n.DeliveredAt, &n.AcknowledgedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	if n.Metadata, err = unmarshalJSONB(meta); err != nil {
		return nil, err
	}
	return &n, nil
}

// PresenceStore is the data access layer for per-medium liveness tracking.
type PresenceStore struct {
	db Queryer
}

// NewPresenceStore creates a PresenceStore.
func NewPresenceStore(db Queryer) *PresenceStore {
	return &PresenceStore{db: db}
}

// Heartbeat upserts a user's last-seen time on a medium.
func (s *PresenceStore) Heartbeat(ctx context.Context, userID, medium string, now time.Time, metadata map[string]any) error {
	meta, err := marshalJSONB(metadata)
	if err != nil {
		return fmt.Errorf("marshal presence metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medium_presence (user_id, medium, last_seen_at, is_active, metadata)
		VALUES ($1,$2,$3,true,$4)
		ON CONFLICT (user_id, medium) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at, is_active = true, metadata = EXCLUDED.metadata
	`, userID, medium, now, meta)
	if err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// MarkInactive flips a medium to inactive without deleting its history,
// called once its last heartbeat falls outside the staleness window.
func (s *PresenceStore) MarkInactive(ctx context.Context, userID, medium string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE medium_presence SET is_active = false WHERE user_id = $1 AND medium = $2
	`, userID, medium)
	if err != nil {
		return fmt.Errorf("mark presence inactive: %w", err)
	}
	return nil
}

// ActiveMediaForUser returns the mediums a user is currently active on.
func (s *PresenceStore) ActiveMediaForUser(ctx context.Context, userID string) ([]*MediumPresence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, medium, last_seen_at, is_active, metadata
		FROM medium_presence WHERE user_id = $1 AND is_active = true ORDER BY last_seen_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active presence: %w", err)
	}
	defer rows.Close()

	var out []*MediumPresence
	for rows.Next() {
		var p MediumPresence
		var meta []byte
		if err := rows.Scan(&p.UserID, &p.Medium, &p.LastSeenAt, &p.IsActive, &meta); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		if p.Metadata, err = unmarshalJSONB(meta); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// StaleActive returns presence rows marked active whose last heartbeat is
// older than the given cutoff, so a background sweep can demote them.
func (s *PresenceStore) StaleActive(ctx context.Context, cutoff time.Time) ([]*MediumPresence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, medium, last_seen_at, is_active, metadata
		FROM medium_presence WHERE is_active = true AND last_seen_at < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale presence: %w", err)
	}
	defer rows.Close()

	var out []*MediumPresence
	for rows.Next() {
		var p MediumPresence
		var meta []byte
		if err := rows.Scan(&p.UserID, &p.Medium, &p.LastSeenAt, &p.IsActive, &meta); err != nil {
			return nil, fmt.Errorf("scan presence: %w", err)
		}
		if p.Metadata, err = unmarshalJSONB(meta); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
