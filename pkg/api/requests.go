package api

// CaptureRequest is the body of POST /conversation/capture.
type CaptureRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	Personality  string `json:"personality"`
	ProjectPath  string `json:"project_path"`
	Prompt       string `json:"prompt"`
	MessageType  string `json:"message_type" binding:"required"`
	Medium       string `json:"medium"`
	UserID       string `json:"user_id"`
	IsCommand    bool   `json:"is_command"`
	SpeakerName  string `json:"speaker_name"`
}

// ContextBuildRequest is the body of POST /context/build.
type ContextBuildRequest struct {
	SessionID            string `json:"session_id" binding:"required"`
	ProjectPath          string `json:"project_path"`
	UserID               string `json:"user_id"`
	ContextDepth         int    `json:"context_depth"`
	IncludeCitations     bool   `json:"include_citations"`
	CitationLimitPerEdge int    `json:"citation_limit_per_edge"`
	CitationMaxChars     int    `json:"citation_max_chars"`
	CurrentPrompt        string `json:"current_prompt"`
}

// ContextGetRequest is the body of POST /context/get.
type ContextGetRequest struct {
	SessionID      string `json:"session_id" binding:"required"`
	MaxAgeMinutes  int    `json:"max_age_minutes"`
}

// ContextSessionStartRequest is the body of POST /context/build_session_start.
type ContextSessionStartRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	UserID     string `json:"user_id"`
	WorkingDir string `json:"working_dir"`
	Medium     string `json:"medium"`
}

// SessionCreateRequest is the body of POST /sessions/create and
// POST /sessions/find_or_create.
type SessionCreateRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
	WorkingDir  string `json:"working_dir"`
	Medium      string `json:"medium"`
	Personality string `json:"personality"`
	MissionID   string `json:"mission_id"`
}

// StatusGetRequest is the body of POST /status/get.
type StatusGetRequest struct {
	Personality string `json:"personality"`
	MCPServers  bool    `json:"mcp_servers"`
	UserID      string `json:"user_id"`
}

// NotificationsRecentRequest is the body of POST /notifications/recent_unacknowledged.
type NotificationsRecentRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Since  string `json:"since"`
}

// SearchHybridRequest is the body of POST /search/hybrid.
type SearchHybridRequest struct {
	Query        string   `json:"query" binding:"required"`
	Limit        int      `json:"limit"`
	Since        string   `json:"since"`
	RerankMethod string   `json:"rerank_method"`
	Diversity    bool     `json:"diversity"`
	EntityValues []string `json:"entity_values"`
	UserID       string   `json:"user_id"`
}

// MemoryEditRequest is the body of POST /memory/core/edit.
type MemoryEditRequest struct {
	BlockType string `json:"block_type" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Reason    string `json:"reason"`
	Scope     string `json:"scope" binding:"required"` // "user" or "session"
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	CharLimit int    `json:"char_limit"`
}

// MemoryRollbackRequest is the body of POST /memory/core/rollback.
type MemoryRollbackRequest struct {
	BlockType     string `json:"block_type" binding:"required"`
	TargetVersion int    `json:"target_version" binding:"required"`
	Reason        string `json:"reason"`
	Scope         string `json:"scope" binding:"required"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
}

// FindingSurfaceRequest is the body of POST /recall/findings/surface.
type FindingSurfaceRequest struct {
	FindingID string `json:"finding_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// MissionCreateRequest is the body of POST /missions.
type MissionCreateRequest struct {
	UserID      string         `json:"user_id" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	RepoOwner   string         `json:"repo_owner"`
	RepoName    string         `json:"repo_name"`
	IssueNumber int            `json:"issue_number"`
	Config      map[string]any `json:"config"`
}

// MissionExecutionStartRequest is the body of POST /missions/:id/executions.
type MissionExecutionStartRequest struct {
	SessionID string `json:"session_id"`
	Trigger   string `json:"trigger" binding:"required"`
}

// SessionClaudeSessionRequest is the body of POST /sessions/:id/claude_session.
type SessionClaudeSessionRequest struct {
	ClaudeSessionID string `json:"claude_session_id" binding:"required"`
}

// SessionMessageRequest is the body of POST /sessions/:id/message.
type SessionMessageRequest struct {
	Role      string `json:"role" binding:"required"`
	Prompt    string `json:"prompt"`
	UserID    string `json:"user_id"`
	Medium    string `json:"medium"`
	IsCommand bool   `json:"is_command"`
}
