package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderMissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "moltagent.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "general", cfg.Moltbook.Submolt)
	assert.Equal(t, "auto", cfg.LLM.Providers)
	assert.True(t, cfg.Dashboard.Enabled)
	assert.Equal(t, ":3000", cfg.Dashboard.Addr)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "state.json"), cfg.StatePath)
	assert.Equal(t, filepath.Join(cfg.DataDir, "snapshots"), cfg.Snapshot.Dir)
}

func TestLoaderReadsFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moltagent.json")
	content := `{
		"data_dir": "` + dir + `",
		"agent": {
			"name": "Ferrule",
			"description": "Writes about marine biology.",
			"keywords": ["ocean", "crabs"]
		},
		"llm": {"providers": "glm,kimi", "max_attempts": 4},
		"dashboard": {"enabled": false},
		"logging": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "Ferrule", cfg.Agent.Name)
	assert.Equal(t, []string{"ocean", "crabs"}, cfg.Agent.Keywords)
	assert.Equal(t, "glm,kimi", cfg.LLM.Providers)
	assert.Equal(t, 4, cfg.LLM.MaxAttempts)
	assert.False(t, cfg.Dashboard.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "general", cfg.Moltbook.Submolt)
	assert.Equal(t, filepath.Join(dir, "moltagent.log"), cfg.Logging.File)
}

func TestLoaderRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moltagent.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewLoader(path).Load()
	assert.Error(t, err)
}

func TestLoaderSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "moltagent.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Agent.Name = "Ferrule"
	cfg.Moltbook.Submolt = "science"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "Ferrule", loaded.Agent.Name)
	assert.Equal(t, "science", loaded.Moltbook.Submolt)
}

func TestHolderSwap(t *testing.T) {
	first := DefaultConfig()
	holder := NewHolder(first)
	assert.Same(t, first, holder.Get())

	second := DefaultConfig()
	second.Agent.Name = "Other"
	holder.Set(second)
	assert.Equal(t, "Other", holder.Get().Agent.Name)
}
