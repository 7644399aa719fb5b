package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "generator:\n  seed: 9\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cfg.Generator.Seed)
	assert.Equal(t, "models", cfg.Generator.ModelsDir)
	assert.Equal(t, "TCP", cfg.Generator.Protocol)
	assert.Equal(t, 1, cfg.Generator.NumWorkers)
	assert.Equal(t, 1024, cfg.Generator.SizeOfResultChannel)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, 10000, cfg.API.MaxStream)
	assert.Zero(t, cfg.Generator.Interval())
}

func TestLoadConfig_RepositoryFile(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "testdata/models", cfg.Generator.ModelsDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Generator.Interval())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Generator.Start())
	require.NotEmpty(t, cfg.Writers)
	assert.Equal(t, "text", cfg.Writers[0].Type)
	assert.True(t, cfg.Writers[0].Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"negative count": "generator:\n  count: -1\n",
		"bad start":      "generator:\n  start_time: yesterday\n",
		"bad interval":   "generator:\n  flow_interval: often\n",
		"not yaml":       "generator: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
