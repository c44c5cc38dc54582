// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package msgpassing

import (
	"log/slog"
	"net"
	"sync"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/queue"
	"github.com/djpetti/meshwire/internal/transport"
)

// Server fans out one listening port into a send queue per connected peer,
// backed by a single ServerTask.
type Server struct {
	p    *pool.Pool
	node *Node
	log  *slog.Logger

	serverHandle pool.Handle

	mu     sync.Mutex
	queues map[transport.Endpoint]*queue.Queue[transport.SendQueueMessage]
}

// NewServer begins accepting connections on the already-bound ln immediately. Every
// accepted connection's reads land on the shared receive queue backing the
// returned Server's Node.
func NewServer(ln *net.TCPListener, p *pool.Pool, log *slog.Logger) *Server {
	recvQueue := queue.New[transport.ReceiveQueueMessage](0)
	s := &Server{
		p:      p,
		node:   NewNode(recvQueue),
		log:    log,
		queues: make(map[transport.Endpoint]*queue.Queue[transport.SendQueueMessage]),
	}

	onPeer := func(endpoint transport.Endpoint, sendQueue *queue.Queue[transport.SendQueueMessage]) {
		s.mu.Lock()
		s.queues[endpoint] = sendQueue
		s.mu.Unlock()
	}

	srv := transport.NewServerTask(ln, p, recvQueue, onPeer, log)
	s.serverHandle = p.AddTask(srv)
	return s
}

// Node exposes the underlying Node for Receive calls.
func (s *Server) Node() *Node { return s.node }

// Send pushes frame onto endpoint's send queue. The Server variant has no
// per-message result channel: the SenderTask backing an accepted connection
// is wired with a discarding result callback, so only Client.Send
// correlates per-message outcomes. Send reports -1 if endpoint is not
// currently connected.
func (s *Server) Send(frame []byte, endpoint transport.Endpoint) int {
	q := s.lookupQueue(endpoint)
	if q == nil {
		return -1
	}
	q.Push(transport.SendQueueMessage{ID: transport.NextMessageID(), Payload: frame, Async: true})
	return len(frame)
}

// SendAsync is identical to Send for the Server variant: both are
// fire-and-forget, since ServerTask wires its SenderTasks with a discarding
// result callback.
func (s *Server) SendAsync(frame []byte, endpoint transport.Endpoint) bool {
	return s.Send(frame, endpoint) >= 0
}

func (s *Server) lookupQueue(endpoint transport.Endpoint) *queue.Queue[transport.SendQueueMessage] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues[endpoint]
}

// GetConnected snapshots the set of currently known peer endpoints. A peer
// remains in this set until a caller removes it with Forget; the Server does
// not remove it on its own when its ReceiverTask observes EOF.
func (s *Server) GetConnected() []transport.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transport.Endpoint, 0, len(s.queues))
	for ep := range s.queues {
		out = append(out, ep)
	}
	return out
}

// Forget drops endpoint from the connected set. Callers observing a
// terminal (status<=0) ReceiveQueueMessage for endpoint should call this so
// GetConnected reflects reality.
func (s *Server) Forget(endpoint transport.Endpoint) {
	s.mu.Lock()
	delete(s.queues, endpoint)
	s.mu.Unlock()
}

// Close cancels the ServerTask and waits for it to join, which in turn
// cancels every outstanding sender/receiver pair and releases the listen
// port.
func (s *Server) Close() {
	s.p.CancelTask(s.serverHandle)
	s.p.WaitForCompletion(&s.serverHandle)
}
