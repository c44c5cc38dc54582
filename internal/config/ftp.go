// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FTPServerConfig is the complete configuration for the chunked FTP-style
// file service.
type FTPServerConfig struct {
	CommandListen    string      `yaml:"command_listen"`
	TerminateListen  string      `yaml:"terminate_listen"`
	RootDir          string      `yaml:"root_dir"`
	SendRateLimit    string      `yaml:"send_rate_limit"` // e.g. "4mb"; parsed into SendRateLimitRaw (0 when empty), which no sender reads
	SendRateLimitRaw int64       `yaml:"-"`
	Logging          LoggingInfo `yaml:"logging"`
}

// LoadFTPServerConfig reads and validates an FTP server config file.
func LoadFTPServerConfig(path string) (*FTPServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ftp server config: %w", err)
	}

	var cfg FTPServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing ftp server config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating ftp server config: %w", err)
	}
	return &cfg, nil
}

func (c *FTPServerConfig) validate() error {
	if c.CommandListen == "" {
		return fmt.Errorf("command_listen is required")
	}
	if c.TerminateListen == "" {
		return fmt.Errorf("terminate_listen is required")
	}
	if c.RootDir == "" {
		c.RootDir = "."
	}
	if c.SendRateLimit != "" {
		parsed, err := ParseByteSize(c.SendRateLimit)
		if err != nil {
			return fmt.Errorf("send_rate_limit: %w", err)
		}
		if parsed <= 0 {
			return fmt.Errorf("send_rate_limit must be > 0 when set, got %s", c.SendRateLimit)
		}
		c.SendRateLimitRaw = parsed
	}
	c.Logging.setDefaults()
	return nil
}
