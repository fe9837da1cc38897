// Package config loads and validates ambientd's YAML configuration:
// curiosity weighting, orchestrator cadence, summary loop, work queue,
// presence staleness, and retention policy.
package config

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Curiosity    *CuriosityConfig
	Orchestrator *OrchestratorConfig
	Summary      *SummaryConfig
	Queue        *QueueConfig
	Presence     *PresenceConfig
	Retention    *RetentionConfig
}

// ConfigDir returns the configuration directory path the config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// ConfigStats summarizes loaded configuration; main logs it at startup.
type ConfigStats struct {
	CuriosityTypeWeights int
	WorkerCount          int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		CuriosityTypeWeights: len(c.Curiosity.TypeWeights),
		WorkerCount:          c.Queue.WorkerCount,
	}
}

// defaultConfig assembles the complete built-in configuration.
func defaultConfig() *Config {
	return &Config{
		Curiosity:    DefaultCuriosityConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Summary:      DefaultSummaryConfig(),
		Queue:        DefaultQueueConfig(),
		Presence:     DefaultPresenceConfig(),
		Retention:    DefaultRetentionConfig(),
	}
}
