package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kektorflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 10, cfg.Engine.MaxSteps)
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
embedder:
  provider: openai
  model: text-embedding-3-small
speech:
  base_url: http://tts.local/v1
  output_dir: /tmp/out
engine:
  max_steps: 3
journal:
  path: runs.journal
  sync_interval: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "http://tts.local/v1", cfg.Speech.BaseURL)
	assert.Equal(t, DefaultConfig().Speech.Model, cfg.Speech.Model)
	assert.Equal(t, "/tmp/out", cfg.Speech.OutputDir)
	assert.Equal(t, 3, cfg.Engine.MaxSteps)
	assert.Equal(t, 2*time.Second, cfg.Journal.SyncInterval)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  max_step: 3\n"))
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	_, err := Load(writeConfig(t, "embedder:\n  provider: carrier-pigeon\nretrieval:\n  max_results: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "max_results")
}

func TestEnvOverridesAPIKeys(t *testing.T) {
	t.Setenv(EnvAPIKey, "shared")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "shared", cfg.Speech.APIKey)
	assert.Equal(t, "shared", cfg.Embedder.APIKey)

	t.Setenv(EnvEmbedderAPIKey, "embed-only")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "shared", cfg.Speech.APIKey)
	assert.Equal(t, "embed-only", cfg.Embedder.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
