// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package config loads and validates the YAML configuration for each of the
// three services built on the shared transport: the FTP-style file
// service, the pub/sub coordinator, and the name-server ring skeleton.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseByteSize converts a human-readable size string such as "256mb" or
// "1gb" into bytes. A bare number is interpreted as bytes.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longest suffix first so "mb" isn't mistaken for "b".
	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
