// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/wire"
)

// dialTimeout bounds how long opening the outbound connection to a
// participant's listening port may take.
const dialTimeout = 5 * time.Second

// Messenger owns one persistent outbound TCP connection to a participant,
// serializing every send under its own mutex so the messenger is never
// invoked concurrently for the same peer, per spec.md §4.11's invariant.
type Messenger struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewMessenger dials host:port and wraps the connection. The dial happens
// once, at Register or Reconnect time; a send failure later does not
// retry — the caller drops the peer, matching the coordinator's
// best-effort delivery policy.
func NewMessenger(host string, port uint16) (*Messenger, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing participant at %s: %w", addr, err)
	}
	return &Messenger{conn: conn}, nil
}

// Send frames msg and writes it to the peer. A partial write is completed
// before returning; any error leaves the connection in an undefined state
// for the caller to Close.
func (m *Messenger) Send(msg ForwardMulticast) error {
	frame, err := wire.Serialize(msg, EncodeForwardMulticast)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for total < len(frame) {
		n, err := m.conn.Write(frame[total:])
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the outbound connection.
func (m *Messenger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn.Close()
}
