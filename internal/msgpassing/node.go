// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package msgpassing provides the high-level request/response API above the
// raw transport layer: Node carries the shared receive/requeue algorithm,
// Client drives one outbound connection, and Server fans out over one
// listening port.
package msgpassing

import (
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/queue"
	"github.com/djpetti/meshwire/internal/transport"
	"github.com/djpetti/meshwire/internal/wire"
)

// Node owns a shared receive queue plus a buffer of ReceiveQueueMessages
// that arrived from a peer other than the one a prior Receive call was
// conversing with. Client and Server each hold one Node.
type Node struct {
	recvQueue *queue.Queue[transport.ReceiveQueueMessage]

	mu       sync.Mutex
	buffered []transport.ReceiveQueueMessage
}

// NewNode creates a Node draining recvQueue.
func NewNode(recvQueue *queue.Queue[transport.ReceiveQueueMessage]) *Node {
	return &Node{recvQueue: recvQueue}
}

// requeue appends msg to the internal buffer, preserving arrival order for
// the peer it belongs to.
func (n *Node) requeue(msg transport.ReceiveQueueMessage) {
	n.mu.Lock()
	n.buffered = append(n.buffered, msg)
	n.mu.Unlock()
}

// pushOverflow is identical to requeue; it exists as a distinct name at call
// sites to make clear the message being buffered is synthetic overflow, not
// a requeued cross-peer read.
func (n *Node) pushOverflow(msg transport.ReceiveQueueMessage) {
	n.requeue(msg)
}

// nextRaw returns the next ReceiveQueueMessage available within the
// deadline, preferring the internal buffer over the shared queue. ok is
// false once the deadline passes with nothing available.
func (n *Node) nextRaw(deadline time.Time, hasDeadline bool) (transport.ReceiveQueueMessage, bool) {
	n.mu.Lock()
	if len(n.buffered) > 0 {
		msg := n.buffered[0]
		n.buffered = n.buffered[1:]
		n.mu.Unlock()
		return msg, true
	}
	n.mu.Unlock()

	if !hasDeadline {
		return n.recvQueue.Pop()
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return transport.ReceiveQueueMessage{}, false
	}
	return n.recvQueue.PopTimed(remaining)
}

// Receive assembles the next complete message of type T from the
// conversation with a single peer. It drains the internal buffer first, then
// the shared receive queue; the first non-terminal frame observed fixes the
// peer endpoint for the rest of the call, and any reads from a different
// endpoint are requeued (not dropped) so a concurrent conversation isn't
// starved. A non-positive status ends the call with ok=false. Any bytes
// belonging to the following frame that were already read are handed back to
// the buffer as synthetic overflow before Receive returns, so the next call
// (from this or another Receive) picks them up.
//
// timeout <= 0 means block indefinitely.
func Receive[T any](n *Node, decode wire.Decoder[T], timeout time.Duration) (msg T, from transport.Endpoint, ok bool) {
	parser := wire.NewParser(decode)

	hasDeadline := timeout > 0
	deadline := time.Now().Add(timeout)

	var conversation transport.Endpoint
	haveConversation := false

	for {
		raw, got := n.nextRaw(deadline, hasDeadline)
		if !got {
			var zero T
			return zero, transport.Endpoint{}, false
		}

		if raw.Status <= 0 {
			var zero T
			return zero, transport.Endpoint{}, false
		}

		if !haveConversation {
			conversation = raw.Endpoint
			haveConversation = true
		} else if raw.Endpoint != conversation {
			n.requeue(raw)
			continue
		}

		parser.Feed(raw.Payload)
		if !parser.HasCompleteMessage() {
			continue
		}

		decoded, ok, err := parser.TakeMessage()
		if err != nil || !ok {
			var zero T
			return zero, transport.Endpoint{}, false
		}

		if parser.HasOverflow() {
			overflow := parser.TakeOverflow()
			n.pushOverflow(transport.ReceiveQueueMessage{
				Payload:  overflow,
				Endpoint: conversation,
				Status:   int32(len(overflow)),
			})
		}

		return decoded, conversation, true
	}
}
