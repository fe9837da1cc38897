package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWithoutConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Curiosity.MaxPendingPerUser)
	assert.Equal(t, 25, cfg.Curiosity.MaxPendingPerType)
	assert.Equal(t, 30, cfg.Orchestrator.CheckIntervalMinutes)
	assert.Equal(t, 3, cfg.Queue.WorkerCount)
}

func TestInitializeMergesUserOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
curiosity:
  max_pending_per_user: 50
orchestrator:
  check_interval_minutes: 10
queue:
  worker_count: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ambientd.yaml"), []byte(content), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Curiosity.MaxPendingPerUser)
	assert.Equal(t, 25, cfg.Curiosity.MaxPendingPerType, "unset field keeps default")
	assert.Equal(t, 10, cfg.Orchestrator.CheckIntervalMinutes)
	assert.Equal(t, 8, cfg.Queue.WorkerCount)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ambientd.yaml"), []byte("curiosity: [unterminated"), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestValidateAllRejectsOutOfRangeWeight(t *testing.T) {
	cfg := defaultConfig()
	cfg.Curiosity.TypeWeights["correction"] = 1.5

	err := ValidateAll(cfg)
	require.Error(t, err)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}
