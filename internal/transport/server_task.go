// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package transport

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/queue"
)

// acceptDeadline bounds each Accept call so cancellation latency on
// shutdown stays bounded.
const acceptDeadline = 1 * time.Second

// NewPeerFunc is invoked once per accepted connection, after its sender
// and receiver tasks have been submitted, so the owner can record the
// per-peer send queue for later addressing.
type NewPeerFunc func(endpoint Endpoint, sendQueue *queue.Queue[SendQueueMessage])

// ServerTask is an accept loop that spawns a sender/receiver task pair for
// every connection, on a shared pool, and reports new peers to the owner.
type ServerTask struct {
	ln       *net.TCPListener
	p        *pool.Pool
	recvOut  *queue.Queue[ReceiveQueueMessage]
	onPeer   NewPeerFunc
	logger   *slog.Logger

	mu       sync.Mutex
	children []*childConn
}

type childConn struct {
	conn         net.Conn
	senderHandle pool.Handle
	recvHandle   pool.Handle
}

// NewServerTask creates a ServerTask accepting on ln. Every accepted
// connection's reads are pushed to recvOut; onPeer is called with the new
// peer's endpoint and its dedicated send queue.
func NewServerTask(ln *net.TCPListener, p *pool.Pool, recvOut *queue.Queue[ReceiveQueueMessage], onPeer NewPeerFunc, logger *slog.Logger) *ServerTask {
	return &ServerTask{ln: ln, p: p, recvOut: recvOut, onPeer: onPeer, logger: logger}
}

// SetUp does no work; the listener is already bound when the task is
// submitted.
func (t *ServerTask) SetUp() pool.Status { return pool.Running }

// RunAtomic performs one bounded-duration Accept, reaping finished
// children along the way.
func (t *ServerTask) RunAtomic() pool.Status {
	t.reapFinishedChildren()

	t.ln.SetDeadline(time.Now().Add(acceptDeadline))
	conn, err := t.ln.AcceptTCP()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return pool.Running
		}
		if t.logger != nil {
			t.logger.Error("server accept failed", "error", err)
		}
		return pool.Failed
	}

	endpoint, err := EndpointFromAddr(conn.RemoteAddr())
	if err != nil {
		conn.Close()
		return pool.Running
	}

	sendQueue := queue.New[SendQueueMessage](0)
	sender := NewSenderTask(conn, sendQueue, func(MessageID, int) {}, nil, t.logger)
	receiver := NewReceiverTask(conn, endpoint, t.recvOut, t.logger)

	senderHandle := t.p.AddTask(sender)
	recvHandle := t.p.AddTask(receiver)

	t.mu.Lock()
	t.children = append(t.children, &childConn{conn: conn, senderHandle: senderHandle, recvHandle: recvHandle})
	t.mu.Unlock()

	if t.onPeer != nil {
		t.onPeer(endpoint, sendQueue)
	}
	if t.logger != nil {
		t.logger.Info("accepted connection", "endpoint", endpoint.String())
	}
	return pool.Running
}

// reapFinishedChildren closes the FD for any connection whose sender and
// receiver have both left the Running state, then drops its bookkeeping.
func (t *ServerTask) reapFinishedChildren() {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.children[:0]
	for _, c := range t.children {
		senderDone := t.p.GetStatus(c.senderHandle) != pool.Running
		recvDone := t.p.GetStatus(c.recvHandle) != pool.Running
		if senderDone && recvDone {
			c.conn.Close()
			continue
		}
		remaining = append(remaining, c)
	}
	t.children = remaining
}

// CleanUp cancels every child task, waits for them to finish, closes their
// FDs, then closes the listen socket.
func (t *ServerTask) CleanUp() {
	t.mu.Lock()
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, c := range children {
		t.p.CancelTask(c.senderHandle)
		t.p.CancelTask(c.recvHandle)
	}
	for _, c := range children {
		t.p.WaitForCompletion(&c.senderHandle)
		t.p.WaitForCompletion(&c.recvHandle)
		c.conn.Close()
	}

	t.ln.Close()
}
