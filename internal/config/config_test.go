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

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, 3, cfg.Engine.Retries)
	assert.Equal(t, time.Second, cfg.Engine.RetryBackoff)
	assert.Equal(t, "http://127.0.0.1:5555", cfg.Models.BaseURL)
	assert.Equal(t, 0.001, cfg.Vision.ScreenDiffThreshold)
	assert.Equal(t, 450, cfg.Vision.SpatialDistance)
	assert.Equal(t, 0.6, cfg.Matching.AcceptThreshold)
	assert.Equal(t, 0.7, cfg.Matching.ConditionThreshold)
	assert.Equal(t, 0.9, cfg.Matching.NameThreshold)
	assert.Equal(t, 8, cfg.Matching.MaxNGram)
	assert.Equal(t, "sequences.json", cfg.Store.SequencesPath)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero retries", func(c *Config) { c.Engine.Retries = 0 }},
		{"missing base url", func(c *Config) { c.Models.BaseURL = "" }},
		{"accept threshold too low", func(c *Config) { c.Matching.AcceptThreshold = 0 }},
		{"accept threshold too high", func(c *Config) { c.Matching.AcceptThreshold = 1 }},
		{"zero ngram", func(c *Config) { c.Matching.MaxNGram = 0 }},
		{"zero spatial distance", func(c *Config) { c.Vision.SpatialDistance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
    retries: 5
matching:
    accept_threshold: 0.75
vision:
    image_dir: /tmp/crops
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Engine.Retries)
	assert.Equal(t, 0.75, cfg.Matching.AcceptThreshold)
	assert.Equal(t, "/tmp/crops", cfg.Vision.ImageDir)
	// Untouched keys keep their defaults.
	assert.Equal(t, "http://127.0.0.1:5555", cfg.Models.BaseURL)
}

func TestLoad_InvalidFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n    retries: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HANDSFREE_ENGINE_RETRIES", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.Retries)
}
