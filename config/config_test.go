package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Http.Port)
	assert.Equal(t, int64(42), config.ML.Seed)
	assert.Equal(t, 0.2, config.ML.TestRatio)
	assert.Equal(t, 200, config.ML.Trees)
	assert.Equal(t, 6, config.Sessions.RequiredFields)
	assert.Equal(t, "students_present", config.Dataset.Target)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  port: 9090
  timeout: 5s
log:
  level: debug
  file: logs/service.log
ml:
  trees: 50
  model_path: models/attendance.json
dataset:
  watch_dir: incoming
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Http.Port)
	assert.Equal(t, 5*time.Second, config.Http.Timeout)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "logs/service.log", config.Log.File)
	assert.Equal(t, 50, config.ML.Trees)
	assert.Equal(t, "models/attendance.json", config.ML.ModelPath)
	assert.Equal(t, "incoming", config.Dataset.WatchDir)
	assert.Equal(t, 1024, config.Sessions.Capacity)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad ratio": "ml:\n  test_ratio: 1.5\n",
		"bad port":  "http:\n  port: 70000\n",
		"bad yaml":  "http: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
