package orchestrator

import "time"

// Config tunes the orchestrator's tick cadence and engagement thresholds.
// Field names and defaults follow spec §4.6 exactly.
type Config struct {
	CheckInterval            time.Duration // base tick interval, default 30 min
	JitterFraction           float64       // ± uniform jitter applied to CheckInterval, default 0.30
	StartupDelay             time.Duration // delay before the first tick, default 0
	ProactiveCooldown        time.Duration // min gap between proactive contacts, default 60 min
	ActivityLookbackHours    int           // clamp ceiling for lookback_minutes, default 4
	ContextChangeThreshold   float64       // fingerprint similarity above which a tick is skipped, default 0.70
	LLMTimeout               time.Duration // default 30s

	ExplorationEnabled            bool
	DailyExplorationCap           int           // default 6
	MaxHoursBetweenExplorations   float64       // default 12 — forces exploration even if not idle enough
}

func DefaultConfig() Config {
	return Config{
		CheckInterval:               30 * time.Minute,
		JitterFraction:              0.30,
		StartupDelay:                0,
		ProactiveCooldown:           60 * time.Minute,
		ActivityLookbackHours:       4,
		ContextChangeThreshold:      0.70,
		LLMTimeout:                  30 * time.Second,
		ExplorationEnabled:          true,
		DailyExplorationCap:         6,
		MaxHoursBetweenExplorations: 12,
	}
}
