package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Second, cfg.Execution.PhaseTimeout.Std())
	assert.Equal(t, 1000, cfg.Execution.HistorySize)
	assert.Equal(t, 0.7, cfg.Execution.OverrideThreshold)
	assert.Equal(t, 0.1, cfg.Reinforcement.Epsilon)
	assert.Equal(t, 0.1, cfg.Reinforcement.LearningRate)
	assert.Equal(t, 7, cfg.Learning.WindowDays)
	assert.Equal(t, 3, cfg.Learning.MinFrequency)
	assert.Equal(t, 24, cfg.Learning.CooldownHours)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Learning, cfg.Learning)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
data_dir: /tmp/echojudge
learning:
  window_days: 3
  min_frequency: 5
  cooldown_hours: 12
execution:
  phase_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/echojudge", cfg.DataDir)
	assert.Equal(t, 3, cfg.Learning.WindowDays)
	assert.Equal(t, 5, cfg.Learning.MinFrequency)
	assert.Equal(t, 12, cfg.Learning.CooldownHours)
	assert.Equal(t, 2*time.Second, cfg.Execution.PhaseTimeout.Std())
	// Untouched areas keep defaults.
	assert.Equal(t, 0.7, cfg.Execution.OverrideThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ECHOJUDGE_DATA_DIR", "/var/lib/echojudge")
	t.Setenv("ECHOJUDGE_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/echojudge", cfg.DataDir)
	assert.True(t, cfg.Debug)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("learning:\n  window_days: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
