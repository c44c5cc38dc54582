// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package fam implements advisory, per-path file locking: a set of
// normalized paths guarded by a mutex and a not-locked condition variable.
// It coordinates access at the application level only; it has no bearing on
// filesystem-level locking.
package fam

import (
	"path/filepath"
	"sync"
)

// Manager is a set of currently locked, normalized absolute paths.
type Manager struct {
	mu       sync.Mutex
	unlocked *sync.Cond
	locked   map[string]struct{}
}

// New creates an empty Manager.
func New() *Manager {
	m := &Manager{locked: make(map[string]struct{})}
	m.unlocked = sync.NewCond(&m.mu)
	return m
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return filepath.Clean(abs)
}

// Lock blocks until path is not held, then marks it locked.
func (m *Manager) Lock(path string) {
	key := normalize(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if _, held := m.locked[key]; !held {
			m.locked[key] = struct{}{}
			return
		}
		m.unlocked.Wait()
	}
}

// Unlock releases path and wakes one waiter blocked on it (or any other
// path — waiters simply recheck their own key on wake).
func (m *Manager) Unlock(path string) {
	key := normalize(path)

	m.mu.Lock()
	delete(m.locked, key)
	m.mu.Unlock()
	m.unlocked.Signal()
}
