package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// ConversationStore is the data access layer for conversations and their
// ordinal-ordered blocks.
type ConversationStore struct {
	db Queryer
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db Queryer) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create inserts a conversation turn.
func (s *ConversationStore) Create(ctx context.Context, c *Conversation) error {
	if c.ID == "" || c.SessionID == "" {
		return NewValidationError("id", "id and session_id required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, session_id, role, prompt, occurred_at, medium, user_id, is_command, latency_ms, tool_names
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.SessionID, c.Role, c.Prompt, c.OccurredAt, c.Medium, c.UserID, c.IsCommand, c.LatencyMs, pq.Array(c.ToolNames))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// NextOrdinal returns the next free block ordinal for a conversation,
// preserving the append-only ordinal-density invariant enforced by the
// conversation_blocks unique index.
func (s *ConversationStore) NextOrdinal(ctx context.Context, conversationID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(ordinal) FROM conversation_blocks WHERE conversation_id = $1
	`, conversationID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("next ordinal: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// AppendBlock inserts a block at its Ordinal, which the caller obtains from
// NextOrdinal within the same transaction to avoid racing another writer.
func (s *ConversationStore) AppendBlock(ctx context.Context, b *ConversationBlock) error {
	toolInput, err := marshalJSONB(b.ToolInput)
	if err != nil {
		return fmt.Errorf("marshal tool_input: %w", err)
	}
	toolResult, err := marshalJSONB(b.ToolResult)
	if err != nil {
		return fmt.Errorf("marshal tool_result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_blocks (
			id, conversation_id, ordinal, kind, text, tool_name, tool_input, tool_result, tool_use_id, embedding
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.ConversationID, b.Ordinal, b.Kind, b.Text, b.ToolName, toolInput, toolResult, b.ToolUseID, pq.Array(b.Embedding))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ordinal %d already occupied", ErrAlreadyExists, b.Ordinal)
		}
		return fmt.Errorf("append block: %w", err)
	}
	return nil
}

// ListBlocks returns a conversation's blocks in ordinal order.
func (s *ConversationStore) ListBlocks(ctx context.Context, conversationID string) ([]*ConversationBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, ordinal, kind, text, tool_name, tool_input, tool_result, tool_use_id, embedding
		FROM conversation_blocks WHERE conversation_id = $1 ORDER BY ordinal ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []*ConversationBlock
	for rows.Next() {
		var b ConversationBlock
		var toolInput, toolResult []byte
		if err := rows.Scan(&b.ID, &b.ConversationID, &b.Ordinal, &b.Kind, &b.Text, &b.ToolName,
			&toolInput, &toolResult, &b.ToolUseID, pq.Array(&b.Embedding)); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if b.ToolInput, err = unmarshalJSONB(toolInput); err != nil {
			return nil, err
		}
		if b.ToolResult, err = unmarshalJSONB(toolResult); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// RecentForSession returns the most recent conversations for a session,
// newest first, bounded by limit.
func (s *ConversationStore) RecentForSession(ctx context.Context, sessionID string, limit int) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, prompt, occurred_at, medium, user_id, is_command, latency_ms, tool_names
		FROM conversations WHERE session_id = $1 ORDER BY occurred_at DESC LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Role, &c.Prompt, &c.OccurredAt, &c.Medium,
			&c.UserID, &c.IsCommand, &c.LatencyMs, pq.Array(&c.ToolNames)); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// dmMediums are the channel kinds the Presence routing preference treats as
// direct messages — checked first before falling back to named channels.
var dmMediums = []string{"dm", "direct_message", "private"}

// LastDMForUser returns the most recent conversation turn exchanged with a
// user over a direct-message medium, or ErrNotFound if none exists.
func (s *ConversationStore) LastDMForUser(ctx context.Context, userID string) (*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, prompt, occurred_at, medium, user_id, is_command, latency_ms, tool_names
		FROM conversations WHERE user_id = $1 AND medium = ANY($2) ORDER BY occurred_at DESC LIMIT 1
	`, userID, pq.Array(dmMediums))
	if err != nil {
		return nil, fmt.Errorf("last dm for user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	var c Conversation
	if err := rows.Scan(&c.ID, &c.SessionID, &c.Role, &c.Prompt, &c.OccurredAt, &c.Medium,
		&c.UserID, &c.IsCommand, &c.LatencyMs, pq.Array(&c.ToolNames)); err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// CountForSession returns how many conversation turns a session has.
func (s *ConversationStore) CountForSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversations WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return m, nil
}
