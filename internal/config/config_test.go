package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vector", cfg.Mode)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.InDelta(t, 60, cfg.RefreshRate, 1e-9)
	assert.Equal(t, 64, cfg.SaturationHits)
	assert.Equal(t, "bars", cfg.Source)
	assert.Positive(t, cfg.Workers)
	assert.EqualValues(t, 256<<20, cfg.MemoryBudget())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: split
width: 1024
refreshRate: 30
source: ffmpeg
input: clip.mp4
showStats: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "split", cfg.Mode)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.InDelta(t, 30, cfg.RefreshRate, 1e-9)
	assert.Equal(t, "ffmpeg", cfg.Source)
	assert.Equal(t, "clip.mp4", cfg.Input)
	assert.True(t, cfg.ShowStats)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"refresh rate", func(c *Config) { c.RefreshRate = 0 }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"memory budget", func(c *Config) { c.MemoryBudgetMB = 0 }},
		{"saturation", func(c *Config) { c.SaturationHits = 0 }},
		{"duration", func(c *Config) { c.Duration = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
