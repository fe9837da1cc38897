package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Consumer folds a sandbox runner's event stream into conversation history:
// text becomes a text block, tool_use/tool_result become tool blocks at
// their ordinal position, done/error end the turn.
type Consumer struct {
	db       *sql.DB
	sessions *store.SessionStore
	convos   *store.ConversationStore
	sink     events.Sink
	now      func() time.Time
}

// NewConsumer constructs a Consumer. sink may be nil (defaults to NoopSink).
func NewConsumer(db *sql.DB, sink events.Sink) *Consumer {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Consumer{
		db:       db,
		sessions: store.NewSessionStore(db),
		convos:   store.NewConversationStore(db),
		sink:     sink,
		now:      time.Now,
	}
}

// Consume drains ch, attributing every block it writes to one assistant
// conversation turn for sessionID. It returns once ch closes or ctx is
// cancelled. Per-event failures are logged and skipped rather than aborting
// the whole run — one malformed tool_result must not lose the rest of the
// turn's history.
func (c *Consumer) Consume(ctx context.Context, sessionID, userID, runID string, ch <-chan Event) error {
	at := c.now().UTC()
	conversationID := uuid.NewString()
	if err := c.convos.Create(ctx, &store.Conversation{
		ID:         conversationID,
		SessionID:  sessionID,
		Role:       "assistant",
		OccurredAt: at,
		UserID:     userID,
	}); err != nil {
		return fmt.Errorf("sandbox: create turn for run %s: %w", runID, err)
	}

	var pendingToolUseID string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, conversationID, runID, ev, &pendingToolUseID); err != nil {
				slog.Warn("sandbox: event handling failed", "run_id", runID, "type", ev.Type, "error", err)
			}
			if ev.Type == EventDone || ev.Type == EventError {
				_ = c.sessions.TouchActivity(ctx, sessionID, c.now().UTC())
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, conversationID, runID string, ev Event, pendingToolUseID *string) error {
	switch ev.Type {
	case EventReady, EventSessionID:
		return nil // correlation metadata only; nothing to persist.

	case EventText:
		var data TextData
		if err := unmarshal(ev.Data, &data); err != nil {
			return err
		}
		return c.appendBlock(ctx, conversationID, "text", &data.Content, nil, nil, nil, nil)

	case EventToolUse:
		var data ToolUseData
		if err := unmarshal(ev.Data, &data); err != nil {
			return err
		}
		*pendingToolUseID = data.ID
		input, err := toMap(data.Input)
		if err != nil {
			return err
		}
		return c.appendBlock(ctx, conversationID, "tool_use", nil, &data.Name, input, nil, strPtr(data.ID))

	case EventToolResult:
		var data ToolResultData
		if err := unmarshal(ev.Data, &data); err != nil {
			return err
		}
		toolUseID := data.ToolUseID
		if toolUseID == "" {
			toolUseID = *pendingToolUseID
		}
		result := map[string]any{"output": data.Output, "is_error": data.IsError}
		return c.appendBlock(ctx, conversationID, "tool_result", nil, nil, nil, result, strPtr(toolUseID))

	case EventDone:
		return nil

	case EventError:
		var data ErrorData
		if err := unmarshal(ev.Data, &data); err != nil {
			data.Message = "unknown sandbox error"
		}
		slog.Warn("sandbox: runner reported error", "run_id", runID, "message", data.Message)
		return c.sink.Publish(ctx, "sandbox.error", conversationID, map[string]any{"run_id": runID, "message": data.Message})

	default:
		return nil // unrecognized event kinds are ignored per the wire contract.
	}
}

func (c *Consumer) appendBlock(ctx context.Context, conversationID, kind string, text, toolName *string, toolInput, toolResult map[string]any, toolUseID *string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append block tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	convos := store.NewConversationStore(tx)
	ordinal, err := convos.NextOrdinal(ctx, conversationID)
	if err != nil {
		return err
	}
	if err := convos.AppendBlock(ctx, &store.ConversationBlock{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Ordinal:        ordinal,
		Kind:           kind,
		Text:           text,
		ToolName:       toolName,
		ToolInput:      toolInput,
		ToolResult:     toolResult,
		ToolUseID:      toolUseID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func strPtr(s string) *string { return &s }
