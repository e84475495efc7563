package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"TREELENS_DB_PATH",
	"TREELENS_DB_DRIVER",
	"TREELENS_DB_AUTH_TOKEN",
	"TREELENS_DB_DEBUG",
	"TREELENS_JOURNAL",
	"TREELENS_BACKUP",
	"TREELENS_DB_RETENTION_RUNS",
	"TREELENS_LOG_LEVEL",
}

// clearConfigEnvVars unsets every variable for the duration of the test.
func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearConfigEnvVars(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "journal.db", filepath.Base(cfg.DBPath))
	assert.Equal(t, "pure", cfg.DBDriver)
	assert.Empty(t, cfg.DBAuthToken)
	assert.False(t, cfg.DBDebug)
	assert.True(t, cfg.Journal)
	assert.False(t, cfg.Backup)
	assert.Equal(t, 20, cfg.RetentionRuns)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnvOverrides(t *testing.T) {
	clearConfigEnvVars(t)
	t.Setenv("TREELENS_DB_PATH", "libsql://journal.example.com")
	t.Setenv("TREELENS_DB_DRIVER", "sqlite")
	t.Setenv("TREELENS_DB_AUTH_TOKEN", "token-123")
	t.Setenv("TREELENS_DB_DEBUG", "true")
	t.Setenv("TREELENS_JOURNAL", "0")
	t.Setenv("TREELENS_BACKUP", "1")
	t.Setenv("TREELENS_DB_RETENTION_RUNS", "5")
	t.Setenv("TREELENS_LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "libsql://journal.example.com", cfg.DBPath)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "token-123", cfg.DBAuthToken)
	assert.True(t, cfg.DBDebug)
	assert.False(t, cfg.Journal)
	assert.True(t, cfg.Backup)
	assert.Equal(t, 5, cfg.RetentionRuns)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TREELENS_DB_DEBUG", "maybe"},
		{"TREELENS_JOURNAL", "on"},
		{"TREELENS_BACKUP", "yes"},
		{"TREELENS_DB_RETENTION_RUNS", "abc"},
		{"TREELENS_DB_RETENTION_RUNS", "-1"},
		{"TREELENS_LOG_LEVEL", "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearConfigEnvVars(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearConfigEnvVars(t)
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("TREELENS_DB_DRIVER=sqlite\nTREELENS_DB_RETENTION_RUNS=3\n"), 0o644))
	t.Setenv("TREELENS_DB_RETENTION_RUNS", "7")

	cfg, err := Load(env, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 7, cfg.RetentionRuns, "the environment wins over the file")

	bad := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(bad, []byte("TREELENS_DB_DRIVER='unterminated\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" Info ", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"WARNING", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"trace", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.LevelWarn, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "file", "a.yaml")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "file=a.yaml")
}
