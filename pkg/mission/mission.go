// Package mission is the Mission / MissionExecution CRUD surface: reusable
// proactive intents the Ambient Orchestrator can invoke, plus a GitHub issue
// context fetcher a mission prompt can reference. See Service.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/omniwaifu/dere-sub005/pkg/store"
)

// Service wraps store.MissionStore with lifecycle operations the HTTP
// surface and orchestrator call directly.
type Service struct {
	missions *store.MissionStore
	issues   IssueContextFetcher
}

// New builds a Service. issues may be nil when no mission in this deployment
// references a GitHub repo; Context then returns an empty string.
func New(missions *store.MissionStore, issues IssueContextFetcher) *Service {
	return &Service{missions: missions, issues: issues}
}

// Create files a new active mission.
func (s *Service) Create(ctx context.Context, m *store.Mission) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.missions.Create(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*store.Mission, error) {
	return s.missions.Get(ctx, id)
}

func (s *Service) ListActiveForUser(ctx context.Context, userID string) ([]*store.Mission, error) {
	return s.missions.ListActiveForUser(ctx, userID)
}

func (s *Service) Pause(ctx context.Context, id string, now time.Time) error {
	return s.missions.SetStatus(ctx, id, "paused", now)
}

func (s *Service) Archive(ctx context.Context, id string, now time.Time) error {
	return s.missions.SetStatus(ctx, id, "archived", now)
}

func (s *Service) Resume(ctx context.Context, id string, now time.Time) error {
	return s.missions.SetStatus(ctx, id, "active", now)
}

// StartExecution records the beginning of a mission run (scheduled or
// orchestrator-triggered).
func (s *Service) StartExecution(ctx context.Context, missionID string, sessionID *string, trigger string, now time.Time) (string, error) {
	exec := &store.MissionExecution{
		ID:        uuid.NewString(),
		MissionID: missionID,
		SessionID: sessionID,
		Trigger:   trigger,
		StartedAt: now,
	}
	if err := s.missions.StartExecution(ctx, exec); err != nil {
		return "", err
	}
	return exec.ID, nil
}

func (s *Service) FinishExecution(ctx context.Context, execID, status, resultSummary, errMsg string, now time.Time) error {
	return s.missions.FinishExecution(ctx, execID, status, resultSummary, errMsg, now)
}

func (s *Service) ListRecentExecutions(ctx context.Context, missionID string, limit int) ([]*store.MissionExecution, error) {
	return s.missions.ListRecentExecutions(ctx, missionID, limit)
}

// Context resolves the extra grounding a mission's prompt can draw on: when
// the mission names a GitHub repo and issue/PR number, fetch its title and
// body. Returns "" (no error) when the mission isn't repo-scoped or no
// fetcher is configured; a fetch failure is returned as an error so the
// caller can decide whether to run the mission without it.
func (s *Service) Context(ctx context.Context, m *store.Mission) (string, error) {
	if m.RepoOwner == nil || m.RepoName == nil || m.IssueNumber == nil || s.issues == nil {
		return "", nil
	}
	issue, err := s.issues.Fetch(ctx, *m.RepoOwner, *m.RepoName, *m.IssueNumber)
	if err != nil {
		return "", fmt.Errorf("mission: fetch issue context: %w", err)
	}
	return fmt.Sprintf("GitHub %s/%s#%d: %s\n\n%s", *m.RepoOwner, *m.RepoName, *m.IssueNumber, issue.Title, issue.Body), nil
}
