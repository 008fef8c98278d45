// Package config loads inkfold configuration from a YAML file. The
// config file is the single source of truth for provider credentials
// and tuning; only the API key may come from the environment so it can
// stay out of checked-in files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkfold/inkfold/pkg/provider"
)

// EnvAPIKey overrides the configured provider API key when set.
const EnvAPIKey = "INKFOLD_API_KEY"

// Duration is a time.Duration that round-trips through YAML in the
// "30s" / "2m" form.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full inkfold configuration.
type Config struct {
	// Database is the path of the SQLite project database.
	Database string `yaml:"database"`

	// Provider configures the completion backend.
	Provider provider.Config `yaml:"provider"`

	// Context tunes snapshot assembly and staleness tracking.
	Context ContextConfig `yaml:"context"`
}

// ContextConfig tunes the snapshot pipeline.
type ContextConfig struct {
	// TokenBudget caps a snapshot's estimated token cost. Zero
	// disables budget degradation.
	TokenBudget int `yaml:"token_budget"`

	// FreshFor, RecentFor, and StaleFor are the cumulative staleness
	// decay windows.
	FreshFor  Duration `yaml:"fresh_for"`
	RecentFor Duration `yaml:"recent_for"`
	StaleFor  Duration `yaml:"stale_for"`

	// QueueRebuildThreshold and EditRebuildThreshold decide when a
	// drained batch forces a full rebuild instead of a cheap refresh.
	QueueRebuildThreshold int `yaml:"queue_rebuild_threshold"`
	EditRebuildThreshold  int `yaml:"edit_rebuild_threshold"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: "inkfold.db",
		Provider: provider.DefaultConfig(),
		Context: ContextConfig{
			TokenBudget:           4000,
			FreshFor:              Duration(30 * time.Second),
			RecentFor:             Duration(2 * time.Minute),
			StaleFor:              Duration(10 * time.Minute),
			QueueRebuildThreshold: 5,
			EditRebuildThreshold:  10,
		},
	}
}

// Load reads a config file, merging it over the defaults. A missing
// file is not an error; the defaults are returned. The INKFOLD_API_KEY
// environment variable, when set, always wins over the file's key.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.Provider.APIKey = key
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as
// needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
