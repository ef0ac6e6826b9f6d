package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Batch.MaxRetries)
	}
	if cfg.Batch.MinCoverage != 80 {
		t.Errorf("MinCoverage = %v, want default 80", cfg.Batch.MinCoverage)
	}
	if cfg.Batch.ContextThreshold != 150000 {
		t.Errorf("ContextThreshold = %v, want default 150000", cfg.Batch.ContextThreshold)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[batch]
max_retries = 5
min_coverage = 90.0

[notifications]
desktop = true
slack_webhook = "https://hooks.slack.example/T000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Batch.MaxRetries)
	}
	if cfg.Batch.MinCoverage != 90 {
		t.Errorf("MinCoverage = %v, want 90", cfg.Batch.MinCoverage)
	}
	if !cfg.Notifications.Desktop {
		t.Error("Desktop should be enabled")
	}
	// Unset fields keep their defaults
	if cfg.Web.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Web.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLAUDE_BATCH_MAX_RETRIES", "7")
	t.Setenv("CLAUDE_BATCH_MIN_COVERAGE", "95.5")
	t.Setenv("CLAUDE_BATCH_CONTEXT_THRESHOLD", "50000")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7 from env", cfg.Batch.MaxRetries)
	}
	if cfg.Batch.MinCoverage != 95.5 {
		t.Errorf("MinCoverage = %v, want 95.5 from env", cfg.Batch.MinCoverage)
	}
	if cfg.Batch.ContextThreshold != 50000 {
		t.Errorf("ContextThreshold = %v, want 50000 from env", cfg.Batch.ContextThreshold)
	}
}

func TestLoad_EnvIgnoresGarbage(t *testing.T) {
	t.Setenv("CLAUDE_BATCH_MAX_RETRIES", "many")
	t.Setenv("CLAUDE_BATCH_MIN_COVERAGE", "-3")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.MaxRetries != 3 || cfg.Batch.MinCoverage != 80 {
		t.Error("unparsable env values should keep defaults")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/state"); got != filepath.Join(home, "state") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath should leave absolute paths alone, got %q", got)
	}
}
