// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// HashRingConfig is the configuration for the name-server ring skeleton.
// Only a bootstrap address is meaningful today; ring-join semantics are an
// open question the skeleton deliberately leaves unimplemented.
type HashRingConfig struct {
	Listen           string      `yaml:"listen"`
	BootstrapAddress string      `yaml:"bootstrap_address"`
	Logging          LoggingInfo `yaml:"logging"`
}

// LoadHashRingConfig reads and validates a hash ring config file.
func LoadHashRingConfig(path string) (*HashRingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hash ring config: %w", err)
	}

	var cfg HashRingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing hash ring config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating hash ring config: %w", err)
	}
	return &cfg, nil
}

func (c *HashRingConfig) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	c.Logging.setDefaults()
	return nil
}
