package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Result tallies one summarization pass.
type Result struct {
	SessionsSummarized int
	RollingUpdated     bool
	CoreMemoryUpdated  int
}

// RunOnce executes a single pass of the Session Summary Loop: per-session
// summarization, rolling summary propagation, then core memory updates for
// every user touched. A pass already in flight causes a subsequent call to
// return immediately with a zero Result rather than block or double-run.
func (l *Loop) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	if !l.running.CompareAndSwap(false, true) {
		return Result{}, nil
	}
	defer l.running.Store(false)

	sessions := store.NewSessionStore(l.db)
	convos := store.NewConversationStore(l.db)

	due, err := sessions.ListDueForSummary(ctx, now, l.cfg.IdleFor)
	if err != nil {
		return Result{}, fmt.Errorf("summary: list due sessions: %w", err)
	}

	var result Result
	touchedUsers := map[string]bool{}

	for _, sess := range due {
		summarized, err := l.summarizeSession(ctx, sessions, convos, sess, now)
		if err != nil {
			slog.Warn("summary: session summarization failed", "session_id", sess.ID, "error", err)
			continue
		}
		if summarized {
			result.SessionsSummarized++
			touchedUsers[sess.UserID] = true
		}
	}

	for userID := range touchedUsers {
		if err := l.rollUp(ctx, userID, now); err != nil {
			slog.Warn("summary: rolling summary failed", "user_id", userID, "error", err)
			continue
		}
		result.RollingUpdated = true

		if err := l.updateCoreMemory(ctx, userID, now); err != nil {
			slog.Warn("summary: core memory update failed", "user_id", userID, "error", err)
			continue
		}
		result.CoreMemoryUpdated++
	}

	return result, nil
}

// summarizeSession applies the per-session trigger condition's message-count
// gate, then calls the LLM Adapter for a short summary.
func (l *Loop) summarizeSession(ctx context.Context, sessions *store.SessionStore, convos *store.ConversationStore, sess *store.Session, now time.Time) (bool, error) {
	count, err := convos.CountForSession(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	if count < l.cfg.MinMessages {
		return false, nil
	}

	recent, err := convos.RecentForSession(ctx, sess.ID, 50)
	if err != nil {
		return false, err
	}
	transcript := oldestFirstTranscript(recent, l.cfg.MaxInputChars)

	prompt := fmt.Sprintf(
		"Summarize the following conversation in 1-2 sentences, capturing what the user wants and any decisions made.\n\n%s",
		transcript,
	)
	text, err := l.llm.Text(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("generate session summary: %w", err)
	}

	if err := sessions.UpdateSummary(ctx, sess.ID, strings.TrimSpace(text), now); err != nil {
		return false, err
	}
	return true, nil
}

// oldestFirstTranscript reverses RecentForSession's newest-first order and
// truncates to maxChars of input, per spec's "last 50, oldest to newest,
// truncated to 2000 chars" rule.
func oldestFirstTranscript(recent []*store.Conversation, maxChars int) string {
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		c := recent[i]
		b.WriteString(c.Role)
		b.WriteString(": ")
		b.WriteString(c.Prompt)
		b.WriteString("\n")
	}
	out := b.String()
	if len(out) > maxChars {
		out = out[len(out)-maxChars:]
	}
	return out
}

// rollUp computes the rolling "summary of summaries": it folds any newly
// per-session-summarized sessions not yet covered by the latest
// summary_context into a fresh merged snapshot.
func (l *Loop) rollUp(ctx context.Context, userID string, now time.Time) error {
	contexts := store.NewSummaryContextStore(l.db)
	sessions := store.NewSessionStore(l.db)

	latest, err := contexts.Latest(ctx, userID)
	covered := map[string]bool{}
	priorSummary := ""
	priorSessionIDs := []string{}
	if err == nil {
		priorSummary = latest.Summary
		priorSessionIDs = latest.SessionIDs
		for _, id := range latest.SessionIDs {
			covered[id] = true
		}
	} else if err != store.ErrNotFound {
		return err
	}

	recent, err := sessions.ListRecentlySummarized(ctx, userID, l.cfg.RollingWindow)
	if err != nil {
		return err
	}

	var fresh []*store.Session
	for _, s := range recent {
		if !covered[s.ID] {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	var b strings.Builder
	if priorSummary != "" {
		b.WriteString(priorSummary)
		b.WriteString("\n")
	}
	for _, s := range fresh {
		if s.Summary != nil {
			b.WriteString(*s.Summary)
			b.WriteString("\n")
		}
	}

	merged, err := l.llm.Text(ctx, fmt.Sprintf(
		"Merge the following session summaries into one 1-2 sentence rolling summary of this user's recent activity.\n\n%s",
		b.String(),
	))
	if err != nil {
		return fmt.Errorf("generate rolling summary: %w", err)
	}

	union := append([]string{}, priorSessionIDs...)
	for _, s := range fresh {
		union = append(union, s.ID)
	}
	sort.Strings(union)

	return contexts.Append(ctx, &store.SummaryContext{
		UserID:     userID,
		Summary:    strings.TrimSpace(merged),
		SessionIDs: union,
	}, now)
}

const maxTaskBlockChars = 8192

// updateCoreMemory folds the user's latest rolling summary into their
// task-type core memory block, truncating so total content never exceeds
// char_limit.
func (l *Loop) updateCoreMemory(ctx context.Context, userID string, now time.Time) error {
	contexts := store.NewSummaryContextStore(l.db)
	latest, err := contexts.Latest(ctx, userID)
	if err != nil {
		return err
	}

	memory := store.NewCoreMemoryStore(l.db)
	charLimit := l.cfg.CoreCharLimit
	if charLimit <= 0 {
		charLimit = maxTaskBlockChars
	}
	block, err := memory.GetOrCreateUserBlock(ctx, l.db, userID, "task", charLimit, now)
	if err != nil {
		return err
	}

	line := "Recent summary: " + latest.Summary
	content := appendTruncated(block.Content, line, charLimit)
	if content == block.Content {
		return nil
	}

	_, err = memory.ApplyEdit(ctx, l.db, block.ID, block.CurrentVersion, content, "append", "summary-loop", now)
	return err
}

// appendTruncated appends line to existing content, keeping only the tail
// that fits within limit.
func appendTruncated(existing, line string, limit int) string {
	content := line
	if existing != "" {
		content = existing + "\n" + line
	}
	if len(content) > limit {
		content = content[len(content)-limit:]
	}
	return content
}
