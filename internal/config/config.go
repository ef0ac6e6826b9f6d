package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Batch         BatchConfig         `toml:"batch"`
	Claude        ClaudeConfig        `toml:"claude"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// BatchConfig holds the batch state machine settings
type BatchConfig struct {
	StateDir         string        `toml:"state_dir"`
	HistoryPath      string        `toml:"history_path"`
	ContextThreshold float64       `toml:"context_threshold"`
	ContextBaseline  float64       `toml:"context_baseline"`
	MaxRetries       int           `toml:"max_retries"`
	MinCoverage      float64       `toml:"min_coverage"`
	LockTimeout      time.Duration `toml:"lock_timeout"`
}

// ClaudeConfig holds pipeline runner settings
type ClaudeConfig struct {
	Model   string `toml:"model"`
	WorkDir string `toml:"work_dir"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds the status server settings
type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns a Config with sensible defaults; the tool is usable
// with zero configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Batch: BatchConfig{
			StateDir:         filepath.Join(home, ".claude-batch", "state"),
			HistoryPath:      filepath.Join(home, ".claude-batch", "history.db"),
			ContextThreshold: 150000,
			ContextBaseline:  20000,
			MaxRetries:       3,
			MinCoverage:      80,
			LockTimeout:      10 * time.Second,
		},
		Claude: ClaudeConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Notifications: NotificationsConfig{
			Desktop: false,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults,
// then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Batch.StateDir = ExpandPath(cfg.Batch.StateDir)
	cfg.Batch.HistoryPath = ExpandPath(cfg.Batch.HistoryPath)
	cfg.Claude.WorkDir = ExpandPath(cfg.Claude.WorkDir)
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with the CLAUDE_BATCH_* environment
// knobs, so every policy setting can be tuned without a config file
func (c *Config) applyEnv() {
	if v := os.Getenv("CLAUDE_BATCH_STATE_DIR"); v != "" {
		c.Batch.StateDir = ExpandPath(v)
	}
	if v, ok := envFloat("CLAUDE_BATCH_CONTEXT_THRESHOLD"); ok {
		c.Batch.ContextThreshold = v
	}
	if v, ok := envFloat("CLAUDE_BATCH_MIN_COVERAGE"); ok {
		c.Batch.MinCoverage = v
	}
	if v := os.Getenv("CLAUDE_BATCH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Batch.MaxRetries = n
		}
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claude-batch", "config.toml")
}
