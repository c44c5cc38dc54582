// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package transport implements the sender/receiver/server pool tasks (C4,
// C5) that drive raw TCP sockets on behalf of the higher-level
// message-passing layer in internal/msgpassing.
package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint identifies a peer by hostname and port. It is a plain value
// type: equality and hashing are by both fields, and it is never mutated
// after creation.
type Endpoint struct {
	Host string
	Port uint16
}

// String renders the endpoint as "host:port".
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// EndpointFromAddr extracts an Endpoint from a net.Addr produced by a TCP
// dial or accept.
func EndpointFromAddr(addr net.Addr) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Endpoint{}, fmt.Errorf("transport: parsing addr %q: %w", addr.String(), err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("transport: parsing port %q: %w", portStr, err)
	}
	return Endpoint{Host: host, Port: uint16(port)}, nil
}
