// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package fam

import (
	"testing"
	"time"
)

func TestLockBlocksUntilUnlock(t *testing.T) {
	m := New()
	m.Lock("a.txt")

	acquired := make(chan struct{})
	go func() {
		m.Lock("a.txt")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock should not have acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock("a.txt")

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after unlock")
	}
}

func TestDifferentPathsDoNotContend(t *testing.T) {
	m := New()
	m.Lock("a.txt")

	done := make(chan struct{})
	go func() {
		m.Lock("b.txt")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locking a different path should not block")
	}
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	m := New()
	g := Lock(m, "a.txt")
	g.Release()
	g.Release()

	// A second lock on the same path must succeed since the first release
	// actually took effect.
	done := make(chan struct{})
	go func() {
		m.Lock("a.txt")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("path was not actually released")
	}
}

func TestRWLockWriteAcquiresReadThenWrite(t *testing.T) {
	rw := NewRW()
	g := rw.LockWrite("a.txt")

	readHeld := make(chan struct{})
	go func() {
		rw.Reads.Lock("a.txt")
		close(readHeld)
	}()
	select {
	case <-readHeld:
		t.Fatal("read lock should still be held by the write guard")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()
	select {
	case <-readHeld:
	case <-time.After(time.Second):
		t.Fatal("read lock was not released when the write guard released")
	}
}
