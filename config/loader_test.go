package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.Equal(t, "disabled", cfg.WebSearch.Provider)
	assert.Equal(t, 10*time.Second, cfg.Retrieval.Timeout)
	assert.False(t, cfg.Engine.ConcurrentBranches)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
log:
  level: debug
retrieval:
  backend: qdrant
  host: vectors.internal
  collection: kb
generation:
  requests_per_second: 2.5
engine:
  concurrent_branches: true
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "qdrant", cfg.Retrieval.Backend)
	assert.Equal(t, "vectors.internal", cfg.Retrieval.Host)
	assert.Equal(t, "kb", cfg.Retrieval.Collection)
	assert.InDelta(t, 2.5, cfg.Generation.RequestsPerSecond, 1e-9)
	assert.True(t, cfg.Engine.ConcurrentBranches)
	// Untouched fields keep their defaults.
	assert.Equal(t, 6333, cfg.Retrieval.Port)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GENFLOW_SERVER_ADDR", ":7070")
	t.Setenv("GENFLOW_RETRIEVAL_BACKEND", "qdrant")
	t.Setenv("GENFLOW_RETRIEVAL_TIMEOUT", "3s")
	t.Setenv("GENFLOW_ENGINE_CONCURRENT_BRANCHES", "true")
	t.Setenv("GENFLOW_GENERATION_REQUESTS_PER_SECOND", "1.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "qdrant", cfg.Retrieval.Backend)
	assert.Equal(t, 3*time.Second, cfg.Retrieval.Timeout)
	assert.True(t, cfg.Engine.ConcurrentBranches)
	assert.InDelta(t, 1.5, cfg.Generation.RequestsPerSecond, 1e-9)
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o644))

	t.Setenv("GENFLOW_SERVER_ADDR", ":7070")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Retrieval.Backend = "pinecone"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown retrieval backend")

	cfg = DefaultConfig()
	cfg.WebSearch.Provider = "serpapi"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an api key")

	cfg.WebSearch.APIKey = "key"
	require.NoError(t, cfg.Validate())
}

func TestLoaderValidatorHook(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Generation.APIKey == "" {
				return fmt.Errorf("generation api key required")
			}
			return nil
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation api key required")
}
