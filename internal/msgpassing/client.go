// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package msgpassing

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/queue"
	"github.com/djpetti/meshwire/internal/transport"
)

// sendDrainGrace is how long Close waits for the send queue to empty before
// forcing cancellation of the sender.
const sendDrainGrace = 5 * time.Second

// ErrNotConnected is returned by Send when the destination could not be
// reached; SendAsync reports the same case by returning false.
var ErrNotConnected = errors.New("msgpassing: not connected")

// Client drives one outbound connection to a fixed destination, lazily
// dialing on first use. Every frame sent carries a MessageID; non-async
// sends block until the paired SenderTask reports the write outcome.
type Client struct {
	dest transport.Endpoint
	p    *pool.Pool
	node *Node
	log  *slog.Logger

	mu             sync.Mutex
	connected      bool
	conn           net.Conn
	sendQueue      *queue.Queue[transport.SendQueueMessage]
	senderHandle   pool.Handle
	receiverHandle pool.Handle

	resultsMu sync.Mutex
	results   map[transport.MessageID]chan int
}

// NewClient creates a Client that will dial dest on first Send/SendAsync.
// recvQueue is the shared receive queue the owning peer's receiver tasks
// push onto; it may be private to this Client or shared with a Server.
func NewClient(dest transport.Endpoint, recvQueue *queue.Queue[transport.ReceiveQueueMessage], p *pool.Pool, log *slog.Logger) *Client {
	return &Client{
		dest:    dest,
		p:       p,
		node:    NewNode(recvQueue),
		log:     log,
		results: make(map[transport.MessageID]chan int),
	}
}

// Node exposes the underlying Node for Receive calls.
func (c *Client) Node() *Node { return c.node }

// ensureConnected dials dest and starts the sender/receiver pair exactly
// once. Subsequent calls are no-ops as long as the connection is live.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	conn, err := net.Dial("tcp", c.dest.String())
	if err != nil {
		return err
	}
	endpoint, err := transport.EndpointFromAddr(conn.RemoteAddr())
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.sendQueue = queue.New[transport.SendQueueMessage](0)

	sender := transport.NewSenderTask(conn, c.sendQueue, c.onResult, nil, c.log)
	receiver := transport.NewReceiverTask(conn, endpoint, c.node.recvQueue, c.log)

	c.senderHandle = c.p.AddTask(sender)
	c.receiverHandle = c.p.AddTask(receiver)
	c.connected = true
	return nil
}

// onResult delivers a SenderTask outcome to whichever Send call is waiting
// on it, if any.
func (c *Client) onResult(id transport.MessageID, n int) {
	c.resultsMu.Lock()
	ch, ok := c.results[id]
	if ok {
		delete(c.results, id)
	}
	c.resultsMu.Unlock()
	if ok {
		ch <- n
	}
}

// Send serializes framed bytes through a fresh MessageID, enqueues it for
// the sender, and blocks until the write outcome is known. It returns -1 if
// the destination is not connected.
func (c *Client) Send(frame []byte) (int, error) {
	if err := c.ensureConnected(); err != nil {
		return -1, ErrNotConnected
	}

	id := transport.NextMessageID()
	ch := make(chan int, 1)
	c.resultsMu.Lock()
	c.results[id] = ch
	c.resultsMu.Unlock()

	c.sendQueue.Push(transport.SendQueueMessage{ID: id, Payload: frame, Async: false})
	return <-ch, nil
}

// SendAsync enqueues frame without waiting for a write outcome.
func (c *Client) SendAsync(frame []byte) bool {
	if err := c.ensureConnected(); err != nil {
		return false
	}
	id := transport.NextMessageID()
	c.sendQueue.Push(transport.SendQueueMessage{ID: id, Payload: frame, Async: true})
	return true
}

// Close drains the send queue (up to sendDrainGrace) then cancels and joins
// both the sender and receiver tasks before closing the socket.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	sendQueue := c.sendQueue
	senderHandle := c.senderHandle
	receiverHandle := c.receiverHandle
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	sendQueue.WaitEmpty(sendDrainGrace)
	c.p.CancelTask(senderHandle)
	c.p.CancelTask(receiverHandle)
	c.p.WaitForCompletion(&senderHandle)
	c.p.WaitForCompletion(&receiverHandle)
	conn.Close()
}
