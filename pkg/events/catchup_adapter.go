package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLCatchupQuerier implements CatchupQuerier directly against the events
// table EventPublisher writes to, rather than through a service layer.
type SQLCatchupQuerier struct {
	db *sql.DB
}

// NewSQLCatchupQuerier creates a CatchupQuerier backed by db.
func NewSQLCatchupQuerier(db *sql.DB) *SQLCatchupQuerier {
	return &SQLCatchupQuerier{db: db}
}

// GetCatchupEvents returns events on channel with id > sinceID, oldest
// first, capped at limit.
func (q *SQLCatchupQuerier) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]CatchupEvent, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("catchup query: %w", err)
	}
	defer rows.Close()

	var out []CatchupEvent
	for rows.Next() {
		var id int
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("catchup scan: %w", err)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("catchup unmarshal: %w", err)
		}
		out = append(out, CatchupEvent{ID: id, Payload: payload})
	}
	return out, rows.Err()
}
