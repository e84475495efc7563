package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration. RetentionRuns of 0 keeps every run.
type Config struct {
	DBPath        string
	DBDriver      string
	DBAuthToken   string
	DBDebug       bool
	Journal       bool
	RetentionRuns int
	Backup        bool
	LogLevel      slog.Level
}

// Load reads .env files into the environment and builds a Config from TREELENS_* variables.
// Missing env files are ignored; variables already set win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:        os.Getenv("TREELENS_DB_PATH"),
		DBDriver:      os.Getenv("TREELENS_DB_DRIVER"),
		DBAuthToken:   os.Getenv("TREELENS_DB_AUTH_TOKEN"),
		Journal:       true,
		RetentionRuns: 20,
		LogLevel:      slog.LevelInfo,
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "pure"
	}

	var err error
	if cfg.DBDebug, err = boolEnv("TREELENS_DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.Journal, err = boolEnv("TREELENS_JOURNAL", true); err != nil {
		return nil, err
	}
	if cfg.Backup, err = boolEnv("TREELENS_BACKUP", false); err != nil {
		return nil, err
	}

	if s := os.Getenv("TREELENS_DB_RETENTION_RUNS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("TREELENS_DB_RETENTION_RUNS: invalid value %q", s)
		}
		cfg.RetentionRuns = n
	}

	if s := os.Getenv("TREELENS_LOG_LEVEL"); s != "" {
		if cfg.LogLevel, err = ParseLevel(s); err != nil {
			return nil, fmt.Errorf("TREELENS_LOG_LEVEL: %w", err)
		}
	}

	return cfg, nil
}

// DefaultDBPath is ~/.treelens/journal.db, or a relative .treelens/journal.db when the
// home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".treelens", "journal.db")
	}
	return filepath.Join(home, ".treelens", "journal.db")
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger returns a text logger writing to w at level.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("%s: invalid value %q", key, s)
	}
	return b, nil
}
