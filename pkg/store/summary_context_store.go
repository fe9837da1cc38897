package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SummaryContextStore is the data access layer for rolling "summary of
// summaries" snapshots.
type SummaryContextStore struct {
	db Queryer
}

func NewSummaryContextStore(db Queryer) *SummaryContextStore {
	return &SummaryContextStore{db: db}
}

// Latest returns a user's most recently created SummaryContext, or
// ErrNotFound if they have none yet.
func (s *SummaryContextStore) Latest(ctx context.Context, userID string) (*SummaryContext, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, summary, session_ids, created_at
		FROM summary_contexts WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID)
	var c SummaryContext
	err := row.Scan(&c.ID, &c.UserID, &c.Summary, pq.Array(&c.SessionIDs), &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest summary context: %w", err)
	}
	return &c, nil
}

// Append writes a new rolling-summary snapshot.
func (s *SummaryContextStore) Append(ctx context.Context, c *SummaryContext, now time.Time) error {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summary_contexts (id, user_id, summary, session_ids, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, c.ID, c.UserID, c.Summary, pq.Array(c.SessionIDs), now)
	if err != nil {
		return fmt.Errorf("append summary context: %w", err)
	}
	return nil
}
