// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"errors"
	"sync"
	"time"
)

// ErrUnknownParticipant is returned by any ParticipantManager operation
// given an id that was never registered or has since been deregistered.
var ErrUnknownParticipant = errors.New("relaycoord: unknown participant")

// Participant is one registered pub/sub peer: its listening address for
// forwarded multicasts, its connectedness, and (while disconnected) the
// moment it went away, used to bound replay on reconnect.
type Participant struct {
	ID             uint32
	Host           string
	Port           uint16
	Connected      bool
	DisconnectTime time.Time
	messenger      *Messenger
}

// ParticipantManager is the registry of every participant the coordinator
// knows about, indexed by id, guarded by a single mutex per spec.md §5's
// shared-resource policy.
type ParticipantManager struct {
	mu           sync.Mutex
	participants map[uint32]*Participant
	nextID       uint32
}

// NewParticipantManager creates an empty registry.
func NewParticipantManager() *ParticipantManager {
	return &ParticipantManager{participants: make(map[uint32]*Participant)}
}

// Register allocates a new id, dials the participant's listening port, and
// marks it connected.
func (m *ParticipantManager) Register(host string, port uint16) (*Participant, error) {
	messenger, err := NewMessenger(host, port)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	p := &Participant{ID: m.nextID, Host: host, Port: port, Connected: true, messenger: messenger}
	m.participants[p.ID] = p
	return p, nil
}

// Deregister closes the participant's messenger and removes it from the
// registry entirely; a subsequent Deregister of the same id changes nothing
// and returns ErrUnknownParticipant.
func (m *ParticipantManager) Deregister(id uint32) error {
	m.mu.Lock()
	p, ok := m.participants[id]
	if ok {
		delete(m.participants, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownParticipant
	}
	if p.messenger != nil {
		p.messenger.Close()
	}
	return nil
}

// Disconnect marks a participant unreachable without forgetting it: its
// Messenger is kept so Reconnect can resurrect it, and its disconnect time
// is recorded as the lower bound for replay.
func (m *ParticipantManager) Disconnect(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	p.Connected = false
	p.DisconnectTime = time.Now()
	return nil
}

// Reconnect re-dials the participant's listening port (which may have
// changed) and marks it connected again. It returns the disconnect time
// that was in effect, for the caller to compute the replay window.
func (m *ParticipantManager) Reconnect(id uint32, port uint16) (*Participant, time.Time, error) {
	m.mu.Lock()
	p, ok := m.participants[id]
	if !ok {
		m.mu.Unlock()
		return nil, time.Time{}, ErrUnknownParticipant
	}
	host := p.Host
	oldMessenger := p.messenger
	disconnectTime := p.DisconnectTime
	m.mu.Unlock()

	messenger, err := NewMessenger(host, port)
	if err != nil {
		return nil, time.Time{}, err
	}
	if oldMessenger != nil {
		oldMessenger.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p.Port = port
	p.Connected = true
	p.messenger = messenger
	return p, disconnectTime, nil
}

// Connected returns every currently-connected participant, snapshotted
// under the registry lock.
func (m *ParticipantManager) Connected() []*Participant {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Participant, 0, len(m.participants))
	for _, p := range m.participants {
		if p.Connected {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the participant registered under id, if any.
func (m *ParticipantManager) Get(id uint32) (*Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	return p, ok
}
