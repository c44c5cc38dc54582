// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package ftpsvc

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/activecmd"
	"github.com/djpetti/meshwire/internal/fam"
	"github.com/djpetti/meshwire/internal/pool"
)

// acceptDeadline bounds each Accept call on either listener.
const acceptDeadline = 1 * time.Second

// Server owns the FTP service's two listeners: the command port, where
// clients run the full Request/Response state machine, and the
// termination port, a separate connection so a Terminate can arrive while
// a transfer is in flight on the command port.
type Server struct {
	p      *pool.Pool
	active *activecmd.Registry
	locks  *fam.RW
	root   string
	logger *slog.Logger

	commandTaskHandle   pool.Handle
	terminateTaskHandle pool.Handle
}

// NewServer begins accepting on both already-bound listeners immediately. root is
// the local directory every client's FileHandler is chrooted to.
func NewServer(commandLn, terminateLn *net.TCPListener, p *pool.Pool, root string, logger *slog.Logger) *Server {
	s := &Server{
		p:      p,
		active: activecmd.New(),
		locks:  fam.NewRW(),
		root:   root,
		logger: logger,
	}

	cmdAccept := newAcceptLoopTask(commandLn, p, s.onCommandConn, logger)
	termAccept := newAcceptLoopTask(terminateLn, p, s.onTerminateConn, logger)
	s.commandTaskHandle = p.AddTask(cmdAccept)
	s.terminateTaskHandle = p.AddTask(termAccept)
	return s
}

func (s *Server) onCommandConn(conn net.Conn) pool.Handle {
	handler, err := NewLocalFileHandler(s.root, s.locks)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("ftp server failed to build file handler", "error", err)
		}
		conn.Close()
		return 0
	}
	agent := NewAgent(conn, handler, s.active, s.logger)
	return s.p.AddTask(agent)
}

func (s *Server) onTerminateConn(conn net.Conn) pool.Handle {
	t := newTerminateAgent(conn, s.active, s.logger)
	return s.p.AddTask(t)
}

// Close cancels both accept loops and waits for them to join, which in
// turn tears down every in-flight Agent and releases both listen ports.
func (s *Server) Close() {
	s.p.CancelTask(s.commandTaskHandle)
	s.p.CancelTask(s.terminateTaskHandle)
	s.p.WaitForCompletion(&s.commandTaskHandle)
	s.p.WaitForCompletion(&s.terminateTaskHandle)
}

// acceptLoopTask is a generic accept loop: on each connection it calls
// onAccept to submit a per-connection pool.Task and tracks the resulting
// handle so CleanUp can cancel and join every child before closing the
// listener, mirroring transport.ServerTask's reaping discipline.
type acceptLoopTask struct {
	ln       *net.TCPListener
	p        *pool.Pool
	onAccept func(net.Conn) pool.Handle
	logger   *slog.Logger

	mu       sync.Mutex
	children []acceptedConn
}

type acceptedConn struct {
	conn   net.Conn
	handle pool.Handle
}

func newAcceptLoopTask(ln *net.TCPListener, p *pool.Pool, onAccept func(net.Conn) pool.Handle, logger *slog.Logger) *acceptLoopTask {
	return &acceptLoopTask{ln: ln, p: p, onAccept: onAccept, logger: logger}
}

func (t *acceptLoopTask) SetUp() pool.Status { return pool.Running }

func (t *acceptLoopTask) RunAtomic() pool.Status {
	t.reapFinished()

	t.ln.SetDeadline(time.Now().Add(acceptDeadline))
	conn, err := t.ln.AcceptTCP()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return pool.Running
		}
		if t.logger != nil {
			t.logger.Error("ftp accept loop failed", "error", err)
		}
		return pool.Failed
	}

	handle := t.onAccept(conn)
	t.mu.Lock()
	t.children = append(t.children, acceptedConn{conn: conn, handle: handle})
	t.mu.Unlock()
	return pool.Running
}

func (t *acceptLoopTask) reapFinished() {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.children[:0]
	for _, c := range t.children {
		if t.p.GetStatus(c.handle) != pool.Running {
			c.conn.Close()
			continue
		}
		remaining = append(remaining, c)
	}
	t.children = remaining
}

func (t *acceptLoopTask) CleanUp() {
	t.mu.Lock()
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, c := range children {
		t.p.CancelTask(c.handle)
	}
	for _, c := range children {
		t.p.WaitForCompletion(&c.handle)
		c.conn.Close()
	}
	t.ln.Close()
}
