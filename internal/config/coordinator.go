// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CoordinatorConfig is the complete configuration for the pub/sub
// multicast coordinator with replay.
type CoordinatorConfig struct {
	Listen          string        `yaml:"listen"`
	ReplayThreshold time.Duration `yaml:"replay_threshold"`
	RetentionSweep  string        `yaml:"retention_sweep"` // cron spec, e.g. "@every 30s"
	SessionLogDir   string        `yaml:"session_log_dir"` // empty disables per-participant session logs
	Logging         LoggingInfo   `yaml:"logging"`
}

// LoadCoordinatorConfig reads and validates a coordinator config file.
func LoadCoordinatorConfig(path string) (*CoordinatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading coordinator config: %w", err)
	}

	var cfg CoordinatorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing coordinator config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating coordinator config: %w", err)
	}
	return &cfg, nil
}

func (c *CoordinatorConfig) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.ReplayThreshold <= 0 {
		c.ReplayThreshold = 10 * time.Second
	}
	if c.RetentionSweep == "" {
		c.RetentionSweep = "@every 30s"
	}
	c.Logging.setDefaults()
	return nil
}
