// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package sysstats samples host disk and load metrics on demand, shared by
// the FTP agent's status response and the hash ring's bootstrap health
// gauge.
package sysstats

import (
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
)

// Snapshot is one point-in-time read of host health.
type Snapshot struct {
	DiskFreePercent float64
	LoadAverage1    float64
}

// Collect samples disk usage for root and 1-minute load average. A failed
// sample for either leaves that field zero rather than failing the whole
// snapshot, matching the teacher's per-metric tolerance in SystemMonitor.
func Collect(root string) Snapshot {
	var snap Snapshot

	if d, err := disk.Usage(root); err == nil {
		snap.DiskFreePercent = 100.0 - d.UsedPercent
	}

	if l, err := load.Avg(); err == nil {
		snap.LoadAverage1 = l.Load1
	}

	return snap
}
