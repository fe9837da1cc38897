package store

import "time"

// Session is a single interactive working session with the daemon.
type Session struct {
	ID               string
	UserID           string
	WorkingDir       string
	StartTime        time.Time
	EndTime          *time.Time
	LastActivity     time.Time
	ContinuedFromID  *string
	Medium           string
	Personality      string
	SandboxPolicy    string
	MissionID        *string
	Summary          *string
	SummaryUpdatedAt *time.Time
	ClaudeSessionID  *string
	CreatedAt        time.Time
}

// Conversation is one turn in a session: a prompt/response pair attributed
// to a role.
type Conversation struct {
	ID         string
	SessionID  string
	Role       string
	Prompt     string
	OccurredAt time.Time
	Medium     string
	UserID     string
	IsCommand  bool
	LatencyMs  *int
	ToolNames  []string
}

// ConversationBlock is one ordinal-ordered piece of a conversation turn:
// text, a tool invocation, or a tool result.
type ConversationBlock struct {
	ID             string
	ConversationID string
	Ordinal        int
	Kind           string
	Text           *string
	ToolName       *string
	ToolInput      map[string]any
	ToolResult     map[string]any
	ToolUseID      *string
	Embedding      []float64
}

// Entity is an extracted mention (person, project, technology, ...) tied to
// a conversation.
type Entity struct {
	ID               string
	ConversationID   string
	EntityType       string
	RawValue         string
	NormalizedValue  string
	Fingerprint      string
	Confidence       float64
	SpanStart        *int
	SpanEnd          *int
	CreatedAt        time.Time
}

// ContextCache holds the last rendered working context for a session, so it
// doesn't need to be recomputed on every turn.
type ContextCache struct {
	SessionID string
	Context   string
	Metadata  map[string]any
	UpdatedAt time.Time
}

// Task status values shared by ProjectTask.
const (
	TaskStatusBacklog    = "backlog"
	TaskStatusReady      = "ready"
	TaskStatusBlocked    = "blocked"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusCancelled  = "cancelled"
)

// ProjectTask is a user-visible unit of exploration or follow-up work
// surfaced by the curiosity pipeline or created directly by a user.
type ProjectTask struct {
	ID              string
	UserID          string
	WorkingDir      string
	Title           string
	TitleKey        string
	Description     string
	Acceptance      string
	ScopePaths      []string
	RequiredTools   []string
	TaskType        string
	Tags            []string
	Priority        int
	Status          string
	ClaimSessionID  *string
	ClaimAgentID    *string
	ClaimedAt       *time.Time
	AttemptCount    int
	BlockedBy       []string
	RelatedTaskIDs  []string
	Outcome         *string
	CompletionNotes *string
	FilesChanged    []string
	LastError       *string
	Extra           map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastTriggeredAt *time.Time
}

// IsClaimed reports whether the task is currently held by a runner.
func (t *ProjectTask) IsClaimed() bool {
	return t.ClaimSessionID != nil && t.ClaimedAt != nil
}

// Task queue entry status values.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// QueueEntry is a short-lived model/LLM job, distinct from a ProjectTask:
// queue entries back curiosity detection, fact extraction, and summary
// generation, not user-visible work.
type QueueEntry struct {
	ID           string
	TaskType     string
	ModelName    string
	Content      string
	Metadata     map[string]any
	Priority     int
	Status       string
	SessionID    *string
	RetryCount   int
	ErrorMessage *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// Core memory block types.
const (
	BlockTypePersona = "persona"
	BlockTypeHuman   = "human"
	BlockTypeScratch = "scratch"
)

// CoreMemoryBlock is a persona/human/scratch block, scoped either globally
// to a user or to a single session.
type CoreMemoryBlock struct {
	ID             string
	UserID         string
	SessionID      *string
	BlockType      string
	Content        string
	CharLimit      int
	CurrentVersion int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CoreMemoryVersion is one immutable revision of a CoreMemoryBlock's content.
type CoreMemoryVersion struct {
	ID         string
	BlockID    string
	Version    int
	Content    string
	ChangeKind string
	Actor      string
	CreatedAt  time.Time
}

// Resolution states a ContradictionReview can be moved to. Accepted-new and
// kept-both both commit the new fact to the graph; kept-old and dismissed do not.
const (
	ReviewStatusPending      = "pending"
	ReviewStatusAcceptedNew  = "accepted-new"
	ReviewStatusKeptOld      = "kept-old"
	ReviewStatusKeptBoth     = "kept-both"
	ReviewStatusDismissed    = "dismissed"
)

// ContradictionReview flags a new claim that conflicts with an existing
// graph fact, pending human or automatic resolution. ExistingFactUUID and
// EntityNames tie the review back to the graph nodes/facts it was raised
// against; GroupID is the tenant partition the Graph Adapter scopes queries
// by.
type ContradictionReview struct {
	ID               string
	UserID           string
	GroupID          string
	BlockID          *string
	ConversationID   *string
	ExistingClaim    string
	ExistingFactUUID string
	NewClaim         string
	Confidence       float64
	Reason           string
	Source           string
	Context          string
	EntityNames      []string
	Status           string
	ResolutionNotes  *string
	Resolver         *string
	CreatedAt        time.Time
	ResolvedAt       *time.Time
}

// Mission is a standing, possibly issue-linked, body of work the daemon can
// be asked to advance on its own.
type Mission struct {
	ID          string
	UserID      string
	Name        string
	Description string
	RepoOwner   *string
	RepoName    *string
	IssueNumber *int
	Status      string
	Config      map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MissionExecution is one run of a Mission.
type MissionExecution struct {
	ID            string
	MissionID     string
	SessionID     *string
	Trigger       string
	Status        string
	ResultSummary *string
	ErrorMessage  *string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

// AmbientNotification is a daemon-initiated message destined for a user
// through some medium (CLI, chat, push).
type AmbientNotification struct {
	ID             string
	UserID         string
	SessionID      *string
	Medium         string
	Kind           string
	Title          string
	Body           string
	Metadata       map[string]any
	Status         string
	CreatedAt      time.Time
	DeliveredAt    *time.Time
	AcknowledgedAt *time.Time
}

// MediumPresence tracks the last time a user was seen active on a medium.
type MediumPresence struct {
	UserID     string
	Medium     string
	LastSeenAt time.Time
	IsActive   bool
	Metadata   map[string]any
}

// DaemonState is the orchestrator's persisted view of a user's engagement
// lifecycle, the raw input to the derived-state function.
type DaemonState struct {
	UserID              string
	IdleSince           *time.Time
	LastEngagementAt    *time.Time
	CooldownUntil       *time.Time
	ActiveSessionCount  int
	LastExplorationAt   *time.Time
	UpdatedAt           time.Time
}

// ExplorationFinding is something the curiosity pipeline discovered while
// exploring a task, independent of whether it has been shown to anyone yet.
type ExplorationFinding struct {
	ID          string
	UserID      string
	TaskID      *string
	WorkingDir  string
	Summary     string
	Detail      string
	FindingType string
	Confidence  float64
	Metadata    map[string]any
	CreatedAt   time.Time
}

// SurfacedFinding records that a finding was shown in a particular session,
// enforcing at-most-once surfacing per (finding, session).
type SurfacedFinding struct {
	ID           string
	FindingID    string
	SessionID    string
	SurfacedAt   time.Time
	Acknowledged bool
}

// SummaryContext is one "rolling summary" snapshot: a merged summary of the
// sessions named in SessionIDs, chained forward by the Session Summary Loop
// each time new sessions get per-session summaries.
type SummaryContext struct {
	ID         string
	UserID     string
	Summary    string
	SessionIDs []string
	CreatedAt  time.Time
}

// ScratchpadEntry is a key/value slot shared by the members of one swarm of
// cooperating sessions.
type ScratchpadEntry struct {
	ID        string
	SwarmID   string
	Key       string
	Value     map[string]any
	WrittenBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
