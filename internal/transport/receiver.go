// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package transport

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/queue"
)

// readBufferSize is the fixed buffer size used for each socket read, per
// the spec's ReceiverTask contract.
const readBufferSize = 1024

// readDeadline bounds each blocking read so cancellation latency stays
// bounded even on an idle connection.
const readDeadline = 1 * time.Second

// ReceiverTask owns one socket and pushes everything it reads onto a
// shared receive queue, tagged with the peer's endpoint. It ends itself
// (transitions to Failed) on EOF or a permanent error so the pool joins it
// and the owning Client/Server/Node sees a terminal ≤0 status through the
// queue.
type ReceiverTask struct {
	conn     net.Conn
	endpoint Endpoint
	out      *queue.Queue[ReceiveQueueMessage]
	logger   *slog.Logger

	buf [readBufferSize]byte
}

// NewReceiverTask creates a ReceiverTask reading from conn and pushing to
// out, tagging every message with endpoint.
func NewReceiverTask(conn net.Conn, endpoint Endpoint, out *queue.Queue[ReceiveQueueMessage], logger *slog.Logger) *ReceiverTask {
	return &ReceiverTask{conn: conn, endpoint: endpoint, out: out, logger: logger}
}

// GetConn returns the underlying connection so the owner can close it once
// both the sender and receiver for this socket have been joined.
func (t *ReceiverTask) GetConn() net.Conn { return t.conn }

// SetUp does no work; the socket is already connected when the task is
// submitted.
func (t *ReceiverTask) SetUp() pool.Status { return pool.Running }

// RunAtomic performs one bounded-duration read and pushes its outcome.
func (t *ReceiverTask) RunAtomic() pool.Status {
	t.conn.SetReadDeadline(time.Now().Add(readDeadline))
	n, err := t.conn.Read(t.buf[:])

	if n > 0 {
		payload := make([]byte, n)
		copy(payload, t.buf[:n])
		t.out.Push(ReceiveQueueMessage{Payload: payload, Endpoint: t.endpoint, Status: int32(n)})
	}

	if err == nil {
		return pool.Running
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// Transient read timeout: nothing arrived within readDeadline.
		return pool.Running
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return pool.Running
	}

	if isEOF(err) {
		t.out.Push(ReceiveQueueMessage{Endpoint: t.endpoint, Status: 0})
		if t.logger != nil {
			t.logger.Debug("receiver observed peer close", "endpoint", t.endpoint.String())
		}
	} else {
		t.out.Push(ReceiveQueueMessage{Endpoint: t.endpoint, Status: -1})
		if t.logger != nil {
			t.logger.Warn("receiver read error", "endpoint", t.endpoint.String(), "error", err)
		}
	}
	return pool.Failed
}

// CleanUp is a no-op: the socket is closed by the owner after both the
// sender and receiver tasks for it have been joined.
func (t *ReceiverTask) CleanUp() {}
