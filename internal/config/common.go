// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package config

// LoggingInfo configures the structured logger shared by every service.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func (l *LoggingInfo) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
}
