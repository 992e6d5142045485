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
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, 10, cfg.Session.HistoryLimit)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":8080"
runner:
  url: http://runner:9000
  timeout: 5s
session:
  history_limit: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "http://runner:9000", cfg.Runner.URL)
	assert.Equal(t, 5*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 3, cfg.Session.HistoryLimit)
	// untouched sections keep defaults
	assert.Equal(t, 80.0, cfg.Layout.RankGap)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":       "postgres://localhost/flow",
		"FLOW_ADDRESS":       ":9999",
		"FLOW_LOG_LEVEL":     "debug",
		"FLOW_HISTORY_LIMIT": "25",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "postgres://localhost/flow", cfg.Database.URL)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 25, cfg.Session.HistoryLimit)
}

func TestApplyEnv_BadHistoryLimit(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "FLOW_HISTORY_LIMIT" {
			return "many", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Session.HistoryLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Address = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_FileOutputNeedsPath(t *testing.T) {
	for _, output := range []string{"file", "both"} {
		cfg := Default()
		cfg.Log.Output = output
		assert.ErrorContains(t, cfg.Validate(), "log.file_path", output)

		cfg.Log.FilePath = filepath.Join(t.TempDir(), "flowd.log")
		assert.NoError(t, cfg.Validate(), output)
	}
}

func TestLoad_FileOutputWithoutPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  output: file\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "log.file_path")
}
