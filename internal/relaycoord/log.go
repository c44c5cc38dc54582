// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"sync"
	"time"
)

// logEntry is one recorded multicast, in the order the coordinator
// accepted it.
type logEntry struct {
	Timestamp time.Time
	OriginID  uint32
	Text      string
}

// MessageLog is a time-windowed, append-only record of every multicast the
// coordinator has broadcast, guarded by a single mutex. Entries older than
// threshold are no longer eligible for replay; Prune removes them so the
// log does not grow without bound.
type MessageLog struct {
	mu        sync.Mutex
	entries   []logEntry
	threshold time.Duration
}

// NewMessageLog creates an empty MessageLog with the given replay
// threshold.
func NewMessageLog(threshold time.Duration) *MessageLog {
	return &MessageLog{threshold: threshold}
}

// Append records one multicast at the given timestamp — the moment of its
// first successful send, per spec.md §4.11.
func (l *MessageLog) Append(originID uint32, text string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Timestamp: at, OriginID: originID, Text: text})
}

// Replay returns every entry with timestamp in (disconnectTime, now] whose
// age at now is within threshold, in insertion order — exactly the set
// spec.md §8's quantified invariant names for a reconnecting participant.
func (l *MessageLog) Replay(disconnectTime, now time.Time) []ForwardMulticast {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ForwardMulticast
	for _, e := range l.entries {
		if !e.Timestamp.After(disconnectTime) {
			continue
		}
		if e.Timestamp.After(now) {
			continue
		}
		if now.Sub(e.Timestamp) > l.threshold {
			continue
		}
		out = append(out, ForwardMulticast{OriginID: e.OriginID, Text: e.Text})
	}
	return out
}

// Prune drops every entry older than threshold relative to now. Intended
// to run periodically off a cron schedule rather than on every Append, so
// the hot path of a multicast never pays for retention bookkeeping.
func (l *MessageLog) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	dropped := 0
	for _, e := range l.entries {
		if now.Sub(e.Timestamp) > l.threshold {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return dropped
}

// Len reports the current number of retained entries.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
