// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package fam

// RW bundles the two independent Manager instances the FTP file handler
// acquires against: one for read intents, one for write intents. Callers
// that need both always acquire reads before writes, never the reverse, so
// no two callers can deadlock against each other.
type RW struct {
	Reads  *Manager
	Writes *Manager
}

// NewRW creates a fresh pair of independent managers.
func NewRW() *RW {
	return &RW{Reads: New(), Writes: New()}
}

// LockRead acquires only the read-intent lock for path, for List/Pwd-style
// operations that inspect but never mutate.
func (rw *RW) LockRead(path string) *Guard {
	return Lock(rw.Reads, path)
}

// LockWrite acquires the read-intent lock followed by the write-intent
// lock, in that fixed order, for operations that mutate path (write,
// delete, mkdir). Release order is the reverse of acquisition.
func (rw *RW) LockWrite(path string) *Guard {
	readGuard := Lock(rw.Reads, path)
	writeGuard := Lock(rw.Writes, path)
	writeGuard.chained = readGuard
	return writeGuard
}
