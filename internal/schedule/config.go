package schedule

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Entry is one recurring batch: a feature list run on a cron schedule
type Entry struct {
	Name             string `toml:"name"`
	Cron             string `toml:"cron"`
	FeaturesFile     string `toml:"features_file"`
	NotifyOnComplete bool   `toml:"notify_on_complete"`
}

// Config holds all scheduled batches
type Config struct {
	Batches []Entry `toml:"batch"`
}

// Validate checks if the entry is valid
func (e *Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("schedule entry needs a name")
	}
	if e.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(e.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if e.FeaturesFile == "" {
		return fmt.Errorf("features_file is required")
	}
	return nil
}

// LoadConfig loads the schedule configuration from a TOML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Batches {
		if err := cfg.Batches[i].Validate(); err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
	}

	return &cfg, nil
}
