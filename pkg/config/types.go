package config

import "time"

// CuriosityConfig controls detector weighting, backlog TTLs, and backlog
// bounds for the curiosity pipeline (spec §4.2).
type CuriosityConfig struct {
	// TypeWeights is the per-signal-type weight used by the priority
	// function. Keys are signal type names; see DefaultCuriosityConfig
	// for the built-in set.
	TypeWeights map[string]float64 `yaml:"type_weights"`

	// CorrectionTTLDays is the backlog TTL for "correction" signals.
	CorrectionTTLDays int `yaml:"correction_ttl_days" validate:"min=1"`

	// DefaultTTLDays is the backlog TTL for all other signal types.
	DefaultTTLDays int `yaml:"default_ttl_days" validate:"min=1"`

	// MaxPendingPerUser caps total pending curiosity tasks per user.
	MaxPendingPerUser int `yaml:"max_pending_per_user" validate:"min=1"`

	// MaxPendingPerType caps pending curiosity tasks per (user, type).
	MaxPendingPerType int `yaml:"max_pending_per_type" validate:"min=1"`

	// PruneScorePercent is the priority floor (0-100) below which a
	// pending task is pruned. Corresponds to spec's 0.15 score threshold
	// expressed as an integer stored priority.
	PruneScorePercent int `yaml:"prune_score_percent" validate:"min=0,max=100"`

	// EmotionalPeakThreshold is the minimum scored intensity for the
	// emotional_peak detector to fire.
	EmotionalPeakThreshold float64 `yaml:"emotional_peak_threshold" validate:"min=0,max=1"`
}

// DefaultCuriosityConfig returns the built-in curiosity defaults from spec §4.2.
func DefaultCuriosityConfig() *CuriosityConfig {
	return &CuriosityConfig{
		TypeWeights: map[string]float64{
			"correction":        0.9,
			"emotional_peak":    0.7,
			"knowledge_gap":     0.6,
			"unfinished_thread": 0.6,
			"unfamiliar_entity": 0.5,
			"research_chain":    0.4,
		},
		CorrectionTTLDays:      7,
		DefaultTTLDays:         14,
		MaxPendingPerUser:      100,
		MaxPendingPerType:      25,
		PruneScorePercent:      15,
		EmotionalPeakThreshold: 0.7,
	}
}

// OrchestratorConfig controls the ambient orchestrator's tick cadence and
// engagement thresholds (spec §4.6).
type OrchestratorConfig struct {
	CheckIntervalMinutes        int     `yaml:"check_interval_minutes" validate:"min=1"`
	JitterFraction              float64 `yaml:"jitter_fraction" validate:"min=0,max=1"`
	StartupDelaySeconds         int     `yaml:"startup_delay_seconds" validate:"min=0"`
	IdleThresholdMinutes        int     `yaml:"idle_threshold_minutes" validate:"min=1"`
	CooldownMinutes             int     `yaml:"cooldown_minutes" validate:"min=1"`
	ContextChangeThreshold      float64 `yaml:"context_change_threshold" validate:"min=0,max=1"`
	ActivityLookbackHours       int     `yaml:"activity_lookback_hours" validate:"min=1"`
	LLMTimeoutSeconds           int     `yaml:"llm_timeout_seconds" validate:"min=1"`
	MaxHoursBetweenExplorations int     `yaml:"max_hours_between_explorations" validate:"min=1"`
	DailyExplorationCap         int     `yaml:"daily_exploration_cap" validate:"min=0"`
	ExplorationEnabled          bool    `yaml:"exploration_enabled"`
}

// DefaultOrchestratorConfig returns the built-in orchestrator defaults.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		CheckIntervalMinutes:        30,
		JitterFraction:              0.30,
		StartupDelaySeconds:         30,
		IdleThresholdMinutes:        15,
		CooldownMinutes:             60,
		ContextChangeThreshold:      0.7,
		ActivityLookbackHours:       4,
		LLMTimeoutSeconds:           30,
		MaxHoursBetweenExplorations: 6,
		DailyExplorationCap:         12,
		ExplorationEnabled:          true,
	}
}

// SummaryConfig controls the session summary loop (spec §4.4).
type SummaryConfig struct {
	RunInterval          time.Duration `yaml:"run_interval"`
	IdleMinutes           int           `yaml:"idle_minutes" validate:"min=1"`
	LookbackHours         int           `yaml:"lookback_hours" validate:"min=1"`
	MinMessages           int           `yaml:"min_messages" validate:"min=1"`
	MaxMessagesFetched    int           `yaml:"max_messages_fetched" validate:"min=1"`
	MaxInputChars         int           `yaml:"max_input_chars" validate:"min=1"`
	RollingSummaryWindow  int           `yaml:"rolling_summary_window" validate:"min=1"`
	CoreMemoryCharLimit   int           `yaml:"core_memory_char_limit" validate:"min=1"`
}

// DefaultSummaryConfig returns the built-in summary loop defaults.
func DefaultSummaryConfig() *SummaryConfig {
	return &SummaryConfig{
		RunInterval:          5 * time.Minute,
		IdleMinutes:          30,
		LookbackHours:        24,
		MinMessages:          5,
		MaxMessagesFetched:   50,
		MaxInputChars:        2000,
		RollingSummaryWindow: 20,
		CoreMemoryCharLimit:  8192,
	}
}

// QueueConfig controls the work queue & task runtime (spec §4.5), reusing
// the teacher's worker-pool shape.
type QueueConfig struct {
	WorkerCount        int           `yaml:"worker_count" validate:"min=1"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`
	MaxRetries         int           `yaml:"max_retries" validate:"min=0"`
	LeaseTimeout       time.Duration `yaml:"lease_timeout"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:        3,
		PollInterval:       1 * time.Second,
		PollIntervalJitter: 250 * time.Millisecond,
		MaxRetries:         3,
		LeaseTimeout:       10 * time.Minute,
	}
}

// PresenceConfig controls medium presence staleness (spec §4.7).
type PresenceConfig struct {
	StalenessWindow time.Duration `yaml:"staleness_window"`
}

// DefaultPresenceConfig returns the built-in presence defaults.
func DefaultPresenceConfig() *PresenceConfig {
	return &PresenceConfig{StalenessWindow: 60 * time.Second}
}
