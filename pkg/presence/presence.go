// Package presence tracks which medium a user is currently reachable on and
// picks a delivery target for ambient notifications. See Service.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// StalenessBound is how long a medium is considered online after its last
// heartbeat.
const StalenessBound = 60 * time.Second

// Service wraps store.PresenceStore with the heartbeat contract and routing
// preference spec names explicitly.
type Service struct {
	presence *store.PresenceStore
}

func New(db store.Queryer) *Service {
	return &Service{presence: store.NewPresenceStore(db)}
}

// Heartbeat records that userID is active on medium right now, with the set
// of channels currently reachable there (e.g. DM and guild channel ids for a
// chat medium). Frontends call this at least every 30s.
func (s *Service) Heartbeat(ctx context.Context, userID, medium, status string, channels []string, now time.Time) error {
	return s.presence.Heartbeat(ctx, userID, medium, now, map[string]any{
		"status":   status,
		"channels": channels,
	})
}

// Target is where an ambient notification should be delivered.
type Target struct {
	Medium  string
	Channel string
	// Desktop is true when no medium is online and the caller should fall
	// back to a local desktop notification instead of a chat delivery.
	Desktop bool
}

// Route picks a delivery target for userID: the most recently active medium
// (heartbeat within StalenessBound), preferring a DM/private channel, then a
// general/main/chat-named channel, then the first available channel. When no
// medium is online, Route returns {Desktop: true}.
func (s *Service) Route(ctx context.Context, userID string, now time.Time) (Target, error) {
	active, err := s.presence.ActiveMediaForUser(ctx, userID)
	if err != nil {
		return Target{}, fmt.Errorf("presence: list active media: %w", err)
	}

	for _, p := range active {
		if now.Sub(p.LastSeenAt) > StalenessBound {
			continue
		}
		channels := stringSlice(p.Metadata["channels"])
		if len(channels) == 0 {
			return Target{Medium: p.Medium}, nil
		}
		return Target{Medium: p.Medium, Channel: pickChannel(channels)}, nil
	}
	return Target{Desktop: true}, nil
}

// pickChannel applies the routing preference: DM/private/direct_message
// first, then a channel whose name mentions general/main/chat, then the
// first available.
func pickChannel(channels []string) string {
	for _, c := range channels {
		if isDirect(c) {
			return c
		}
	}
	for _, c := range channels {
		if isCommon(c) {
			return c
		}
	}
	return channels[0]
}

func isDirect(channel string) bool {
	lower := strings.ToLower(channel)
	for _, kw := range []string{"dm", "private", "direct_message"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isCommon(channel string) bool {
	lower := strings.ToLower(channel)
	for _, kw := range []string{"general", "main", "chat"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SweepStale demotes active presence rows whose last heartbeat predates
// cutoff, so ActiveMediaForUser doesn't keep routing to a medium that went
// quiet without an explicit sign-off.
func (s *Service) SweepStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.presence.StaleActive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("presence: list stale: %w", err)
	}
	for _, p := range stale {
		if err := s.presence.MarkInactive(ctx, p.UserID, p.Medium); err != nil {
			return 0, fmt.Errorf("presence: mark inactive: %w", err)
		}
	}
	return len(stale), nil
}
