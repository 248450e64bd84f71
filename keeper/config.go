package keeper

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all keeper configuration.
type Config struct {
	DBPath string `yaml:"db_path"`
	Addr   string `yaml:"addr"`
	// MaxAge is the staleness threshold used by the sweeper. It matches the
	// autosave attach-time check.
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// MaxDraftBytes caps one stored snapshot; larger writes are refused as
	// quota exceeded.
	MaxDraftBytes int `yaml:"max_draft_bytes"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "draftkeeper.db"
	}
	if c.Addr == "" {
		c.Addr = ":8086"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Minute
	}
	if c.MaxDraftBytes <= 0 {
		c.MaxDraftBytes = 5 << 20
	}
}

// LoadConfigFile reads a YAML config file. Durations use Go syntax
// ("24h", "90s").
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("keeper: parse %s: %w", path, err)
	}
	return cfg, nil
}
