package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ContextCacheStore is the data access layer for per-session materialized
// context blobs.
type ContextCacheStore struct {
	db Queryer
}

// NewContextCacheStore creates a ContextCacheStore.
func NewContextCacheStore(db Queryer) *ContextCacheStore {
	return &ContextCacheStore{db: db}
}

// Upsert stores the materialized context for a session, overwriting any
// previous blob.
func (s *ContextCacheStore) Upsert(ctx context.Context, sessionID, contextText string, metadata map[string]any, now time.Time) error {
	meta, err := marshalJSONB(metadata)
	if err != nil {
		return fmt.Errorf("marshal context metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context_cache (session_id, context, metadata, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			context = EXCLUDED.context, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
	`, sessionID, contextText, meta, now)
	if err != nil {
		return fmt.Errorf("upsert context cache: %w", err)
	}
	return nil
}

// Get returns the cached context for a session if it was updated within
// maxAge of now; otherwise found is false.
func (s *ContextCacheStore) Get(ctx context.Context, sessionID string, maxAge time.Duration, now time.Time) (contextText string, found bool, err error) {
	var updatedAt time.Time
	err = s.db.QueryRowContext(ctx, `
		SELECT context, updated_at FROM context_cache WHERE session_id = $1
	`, sessionID).Scan(&contextText, &updatedAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get context cache: %w", err)
	}
	if now.Sub(updatedAt) > maxAge {
		return "", false, nil
	}
	return contextText, true, nil
}
