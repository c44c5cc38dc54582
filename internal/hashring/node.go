// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package hashring is a deliberately thin skeleton for a consistent-hash
// name-server ring, grounded on original_source/project4's Nameserver
// class. Ring-join semantics (key bounds, successor/predecessor linking,
// pair migration on join/leave) are an open question the distilled
// specification explicitly leaves undecided, so this package exposes the
// shape of a ring node without guessing at the protocol.
package hashring

import (
	"errors"
	"log/slog"

	"github.com/djpetti/meshwire/internal/sysstats"
)

// ErrNotImplemented is returned by every ring operation: this skeleton
// models the shape of a ring node without inventing join semantics.
var ErrNotImplemented = errors.New("hashring: ring membership protocol not implemented")

// Endpoint identifies a ring member by host and control port, mirroring
// transport.Endpoint's (host, port) pairing used throughout the rest of
// the project.
type Endpoint struct {
	Host string
	Port uint16
}

// Node is one member of the ring: its own endpoint, the bootstrap node it
// was told about at startup, and the key range it believes it owns once
// joined. Bounds is always zero-valued until a real join protocol exists.
type Node struct {
	Self      Endpoint
	Bootstrap Endpoint
	Bounds    [2]int

	logger *slog.Logger
}

// NewNode creates a ring Node that knows its own address and the
// bootstrap node to contact, but has not joined anything.
func NewNode(self, bootstrap Endpoint, logger *slog.Logger) *Node {
	return &Node{Self: self, Bootstrap: bootstrap, logger: logger}
}

// LookUp would resolve which ring member owns key. Unimplemented.
func (n *Node) LookUp(key int) (Endpoint, error) {
	return Endpoint{}, ErrNotImplemented
}

// Insert would store a key/value pair at the owning ring member.
// Unimplemented.
func (n *Node) Insert(key int, value string) error {
	return ErrNotImplemented
}

// Delete would remove a key from the ring. Unimplemented.
func (n *Node) Delete(key int) error {
	return ErrNotImplemented
}

// Health reports this node's current disk/load snapshot, the same
// sysstats component the FTP agent's status response consults — useful to
// a future join protocol for load-aware placement, even though placement
// itself is not implemented here.
func (n *Node) Health() sysstats.Snapshot {
	return sysstats.Collect("/")
}

// LogUnimplemented records, once at startup, that ring membership is a
// skeleton: cmd/nameserver calls this instead of attempting to join.
func (n *Node) LogUnimplemented() {
	if n.logger == nil {
		return
	}
	n.logger.Warn("hash ring membership protocol is not implemented",
		"self", n.Self, "bootstrap", n.Bootstrap)
}
