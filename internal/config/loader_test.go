package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Duration())
	assert.Equal(t, float64(150), cfg.Convert.DPI)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "annotationd", cfg.Telemetry.ServiceName)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
auth:
  token_ttl: 1h
convert:
  dpi: 96
logging:
  level: debug
  format: console
`, 0o600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Duration())
	assert.Equal(t, float64(96), cfg.Convert.DPI)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n", 0o600)
	t.Setenv("SERVER_PORT", "7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_NestedStoreEnv(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "couchbase")
	t.Setenv("STORE_COUCHBASE_CONNECTION_STRING", "couchbase://db")
	t.Setenv("STORE_COUCHBASE_BUCKET", "annotations")
	t.Setenv("STORE_COUCHBASE_PASSWORD", "hush")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "couchbase", cfg.Store.Provider)
	assert.Equal(t, "couchbase://db", cfg.Store.Couchbase.ConnectionString)
	assert.Equal(t, "annotations", cfg.Store.Couchbase.Bucket)
	assert.Equal(t, "hush", cfg.Store.Couchbase.Password.Value())
}

func TestLoad_InsecurePermissionsRejected(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n", 0o644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad provider", "store:\n  provider: mongo\n"},
		{"couchbase without connection", "store:\n  provider: couchbase\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"dpi too low", "convert:\n  dpi: 10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml, 0o600)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}
