// Package ingest durably records conversation turns and fans them out to the
// rest of the system (graph episodes, emotion signals, curiosity detection)
// without ever blocking the caller on a downstream pipeline.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Role mirrors store.Conversation's role enum, kept local so callers don't
// need to import pkg/store just to name a role.
type Role = string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// EmotionBuffer receives emotional stimuli derived from a turn. Concrete
// scoring/lexicon logic lives outside the core (the core only needs to
// enqueue, never to score).
type EmotionBuffer interface {
	Enqueue(ctx context.Context, sessionID, userID, text string) error
}

// CuriosityEvaluator reacts to a captured turn by evaluating curiosity
// signals. Implemented by pkg/curiosity; declared here to avoid ingest
// depending on curiosity's internals.
type CuriosityEvaluator interface {
	EvaluateTurn(ctx context.Context, sessionID, userID string, role Role, prompt string, isCommand bool, at time.Time) error
}

// CaptureInput is the request shape for Capture.
type CaptureInput struct {
	SessionID string
	UserID    string
	Role      Role
	Prompt    string
	Medium    string
	IsCommand bool
}

// Ingestor is the Conversation Ingestor: capture(...) → conversation id.
type Ingestor struct {
	db         *sql.DB
	sessions   *store.SessionStore
	convos     *store.ConversationStore
	graph      graph.Adapter
	emotion    EmotionBuffer
	curiosity  CuriosityEvaluator
	sink       events.Sink
	now        func() time.Time
}

// New constructs an Ingestor. graph, emotion, curiosity, and sink may be nil
// stand-ins (e.g. a no-op EmotionBuffer) when those pipelines aren't wired
// for a given deployment — failures/absences never block capture.
func New(db *sql.DB, graphAdapter graph.Adapter, emotion EmotionBuffer, curiosity CuriosityEvaluator, sink events.Sink) *Ingestor {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Ingestor{
		db:        db,
		sessions:  store.NewSessionStore(db),
		convos:    store.NewConversationStore(db),
		graph:     graphAdapter,
		emotion:   emotion,
		curiosity: curiosity,
		sink:      sink,
		now:       time.Now,
	}
}

// Capture records one conversation turn and returns its id. It creates the
// session lazily, writes exactly one conversation row, and — when Prompt is
// non-empty — exactly one text block at ordinal 0. Graph, emotion, and
// curiosity fan-out are attempted after the durable write commits; any
// failure there is logged, never returned to the caller.
func (ing *Ingestor) Capture(ctx context.Context, in CaptureInput) (string, error) {
	if in.SessionID == "" {
		return "", store.NewValidationError("session_id", "required")
	}
	if in.Role == "" {
		return "", store.NewValidationError("role", "required")
	}

	at := ing.now().UTC()

	if _, err := ing.sessions.EnsureSession(ctx, &store.Session{
		ID:           in.SessionID,
		UserID:       in.UserID,
		StartTime:    at,
		LastActivity: at,
		Medium:       in.Medium,
	}); err != nil {
		return "", fmt.Errorf("ensure session: %w", err)
	}

	conversationID := uuid.NewString()
	tx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin capture tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	convos := store.NewConversationStore(tx)
	if err := convos.Create(ctx, &store.Conversation{
		ID:        conversationID,
		SessionID: in.SessionID,
		Role:      in.Role,
		Prompt:    in.Prompt,
		OccurredAt: at,
		Medium:    in.Medium,
		UserID:    in.UserID,
		IsCommand: in.IsCommand,
	}); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	if in.Prompt != "" {
		prompt := in.Prompt
		if err := convos.AppendBlock(ctx, &store.ConversationBlock{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Ordinal:        0,
			Kind:           "text",
			Text:           &prompt,
		}); err != nil {
			return "", fmt.Errorf("append text block: %w", err)
		}
	}

	sessions := store.NewSessionStore(tx)
	if err := sessions.TouchActivity(ctx, in.SessionID, at); err != nil {
		return "", fmt.Errorf("touch session activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit capture tx: %w", err)
	}

	ing.fanOut(ctx, in, conversationID, at)

	return conversationID, nil
}

// fanOut runs every downstream pipeline best-effort. It intentionally
// ignores the caller's cancellation once the durable write has committed —
// a cancelled HTTP request must not silently drop a graph episode or
// curiosity signal that the user's message already earned.
func (ing *Ingestor) fanOut(_ context.Context, in CaptureInput, conversationID string, at time.Time) {
	bg := context.Background()

	if ing.graph != nil && in.Prompt != "" {
		_, err := ing.graph.AddEpisode(bg, graph.EpisodeInput{
			EpisodeBody:       in.Prompt,
			SourceDescription: string(in.Role),
			ReferenceTime:     at.Format(time.RFC3339),
			Source:            in.Medium,
			GroupID:           in.UserID,
			SpeakerID:         in.UserID,
			SpeakerName:       string(in.Role),
		})
		if err != nil {
			slog.Warn("ingest: graph episode publish failed", "conversation_id", conversationID, "error", err)
		}
	}

	if ing.emotion != nil && in.Prompt != "" {
		if err := ing.emotion.Enqueue(bg, in.SessionID, in.UserID, in.Prompt); err != nil {
			slog.Warn("ingest: emotion stimulus enqueue failed", "conversation_id", conversationID, "error", err)
		}
	}

	// Command inputs from the user must not create curiosity tasks.
	suppressCuriosity := in.IsCommand && in.Role == RoleUser
	if ing.curiosity != nil && !suppressCuriosity {
		if err := ing.curiosity.EvaluateTurn(bg, in.SessionID, in.UserID, in.Role, in.Prompt, in.IsCommand, at); err != nil {
			slog.Warn("ingest: curiosity evaluation failed", "conversation_id", conversationID, "error", err)
		}
	}

	if err := ing.sink.Publish(bg, "conversation.captured", in.SessionID, map[string]any{
		"conversation_id": conversationID,
		"role":            in.Role,
	}); err != nil {
		slog.Warn("ingest: sink publish failed", "conversation_id", conversationID, "error", err)
	}
}
