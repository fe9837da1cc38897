package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL that
// are awkward to express as a plain migration ordering (they reference
// columns created across several migrations and are safe to re-run).
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_conversations_prompt_gin
		ON conversations USING gin(to_tsvector('english', prompt))`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_summary_gin
		ON sessions USING gin(to_tsvector('english', COALESCE(summary, '')))`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating GIN index: %w", err)
		}
	}
	return nil
}
