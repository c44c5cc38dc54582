// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/djpetti/meshwire/internal/logging"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/robfig/cron/v3"
)

// acceptDeadline bounds each Accept call on the control listener.
const acceptDeadline = 1 * time.Second

// Coordinator implements C11: it accepts one-shot control connections,
// maintains the participant registry and replay log, and serializes every
// multicast broadcast under a single lock so every connected peer observes
// the same relative order as the log's insertion order.
type Coordinator struct {
	manager *ParticipantManager
	log     *MessageLog
	p       *pool.Pool
	logger  *slog.Logger

	broadcastMu sync.Mutex

	ln           *net.TCPListener
	acceptHandle pool.Handle

	mu       sync.Mutex
	children []acceptedConn
	closed   bool

	sweep *cron.Cron

	// sessionLogDir, when non-empty, gives each participant a dedicated log
	// file for the duration of its registration, following the teacher's
	// per-backup-session log isolation (see logging.NewSessionLogger).
	sessionLogDir string
	sessionMu     sync.Mutex
	sessions      map[uint32]sessionHandle
}

type sessionHandle struct {
	logger *slog.Logger
	closer io.Closer
}

type acceptedConn struct {
	conn   net.Conn
	handle pool.Handle
}

// NewCoordinator starts the accept loop on the already-bound control listener, and
// schedules the log's retention sweep on sweepSchedule (a robfig/cron
// spec, e.g. "@every 30s").
func NewCoordinator(ln *net.TCPListener, p *pool.Pool, threshold time.Duration, sweepSchedule, sessionLogDir string, logger *slog.Logger) (*Coordinator, error) {
	c := &Coordinator{
		manager:       NewParticipantManager(),
		log:           NewMessageLog(threshold),
		p:             p,
		logger:        logger,
		ln:            ln,
		sessionLogDir: sessionLogDir,
		sessions:      make(map[uint32]sessionHandle),
	}

	c.sweep = cron.New()
	if _, err := c.sweep.AddFunc(sweepSchedule, c.runRetentionSweep); err != nil {
		return nil, err
	}
	c.sweep.Start()

	c.acceptHandle = p.AddTask(c)
	return c, nil
}

// openSession starts a dedicated log file for participant id and returns a
// logger that fans out to both it and the coordinator's base logger. If
// sessionLogDir is empty, NewSessionLogger is a no-op and this just returns
// the base logger.
func (c *Coordinator) openSession(id uint32) *slog.Logger {
	sessionLogger, closer, _, err := logging.NewSessionLogger(c.logger, c.sessionLogDir, "participant", fmt.Sprintf("%d", id))
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to open participant session log", "participant", id, "error", err)
		}
		return c.logger
	}

	c.sessionMu.Lock()
	c.sessions[id] = sessionHandle{logger: sessionLogger, closer: closer}
	c.sessionMu.Unlock()
	return sessionLogger
}

// sessionLogger returns the per-participant logger opened at Register, or
// the coordinator's base logger if none was opened (e.g. after a restart
// that lost in-memory session state).
func (c *Coordinator) sessionLogger(id uint32) *slog.Logger {
	c.sessionMu.Lock()
	h, ok := c.sessions[id]
	c.sessionMu.Unlock()
	if !ok {
		return c.logger
	}
	return h.logger
}

// logParticipantEvent is a nil-safe wrapper: the coordinator's base logger
// is optional throughout this package, and so is the per-participant
// session logger when sessionLogDir is empty.
func (c *Coordinator) logParticipantEvent(id uint32, msg string, args ...any) {
	l := c.sessionLogger(id)
	if l == nil {
		return
	}
	l.Info(msg, args...)
}

// closeSession closes and removes a participant's session log file, called
// once its registration ends cleanly via Deregister.
func (c *Coordinator) closeSession(id uint32) {
	c.sessionMu.Lock()
	h, ok := c.sessions[id]
	delete(c.sessions, id)
	c.sessionMu.Unlock()

	if ok && h.closer != nil {
		h.closer.Close()
	}
	logging.RemoveSessionLog(c.sessionLogDir, "participant", fmt.Sprintf("%d", id))
}

func (c *Coordinator) runRetentionSweep() {
	dropped := c.log.Prune(time.Now())
	if dropped > 0 && c.logger != nil {
		c.logger.Debug("coordinator pruned expired log entries", "dropped", dropped)
	}
}

// SetUp/RunAtomic/CleanUp implement pool.Task for the control listener's
// accept loop, mirroring ftpsvc's acceptLoopTask and transport.ServerTask.
func (c *Coordinator) SetUp() pool.Status { return pool.Running }

func (c *Coordinator) RunAtomic() pool.Status {
	c.reapFinished()

	c.ln.SetDeadline(time.Now().Add(acceptDeadline))
	conn, err := c.ln.AcceptTCP()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return pool.Running
		}
		if c.logger != nil {
			c.logger.Error("coordinator accept loop failed", "error", err)
		}
		return pool.Failed
	}

	agent := newControlConn(conn, c, c.logger)
	handle := c.p.AddTask(agent)
	c.mu.Lock()
	c.children = append(c.children, acceptedConn{conn: conn, handle: handle})
	c.mu.Unlock()
	return pool.Running
}

func (c *Coordinator) reapFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.children[:0]
	for _, child := range c.children {
		if c.p.GetStatus(child.handle) != pool.Running {
			child.conn.Close()
			continue
		}
		remaining = append(remaining, child)
	}
	c.children = remaining
}

func (c *Coordinator) CleanUp() {
	c.mu.Lock()
	children := c.children
	c.children = nil
	c.mu.Unlock()

	for _, child := range children {
		c.p.CancelTask(child.handle)
	}
	for _, child := range children {
		c.p.WaitForCompletion(&child.handle)
		child.conn.Close()
	}
	c.ln.Close()

	c.sessionMu.Lock()
	sessions := c.sessions
	c.sessions = nil
	c.sessionMu.Unlock()
	for _, h := range sessions {
		if h.closer != nil {
			h.closer.Close()
		}
	}
}

// Close cancels the accept loop, waits for it to join, and stops the
// retention sweep cron.
func (c *Coordinator) Close() {
	c.sweep.Stop()
	c.p.CancelTask(c.acceptHandle)
	c.p.WaitForCompletion(&c.acceptHandle)
}

// dispatch processes one ControlRequest arriving on conn and returns the
// response to write back.
func (c *Coordinator) dispatch(req ControlRequest, conn net.Conn) ControlResponse {
	switch req.Kind {
	case CtrlRegister:
		return c.handleRegister(req, conn)
	case CtrlDeregister:
		if err := c.manager.Deregister(req.ParticipantID); err != nil {
			return ControlResponse{Kind: CtrlError, Message: err.Error()}
		}
		c.logParticipantEvent(req.ParticipantID, "participant deregistered", "id", req.ParticipantID)
		c.closeSession(req.ParticipantID)
		return ControlResponse{Kind: CtrlOK}
	case CtrlDisconnect:
		if err := c.manager.Disconnect(req.ParticipantID); err != nil {
			return ControlResponse{Kind: CtrlError, Message: err.Error()}
		}
		c.logParticipantEvent(req.ParticipantID, "participant disconnected", "id", req.ParticipantID)
		return ControlResponse{Kind: CtrlOK}
	case CtrlReconnect:
		return c.handleReconnect(req)
	case CtrlMulticast:
		return c.handleMulticast(req)
	default:
		return ControlResponse{Kind: CtrlError, Message: "unknown control request kind"}
	}
}

func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (c *Coordinator) handleRegister(req ControlRequest, conn net.Conn) ControlResponse {
	host := remoteHost(conn)
	p, err := c.manager.Register(host, req.Port)
	if err != nil {
		return ControlResponse{Kind: CtrlError, Message: err.Error()}
	}
	sessionLogger := c.openSession(p.ID)
	if sessionLogger != nil {
		sessionLogger.Info("participant registered", "id", p.ID, "host", host, "port", req.Port)
	}
	return ControlResponse{Kind: CtrlOK, ParticipantID: p.ID}
}

func (c *Coordinator) handleReconnect(req ControlRequest) ControlResponse {
	p, disconnectTime, err := c.manager.Reconnect(req.ParticipantID, req.Port)
	if err != nil {
		return ControlResponse{Kind: CtrlError, Message: err.Error()}
	}

	now := time.Now()
	missed := c.log.Replay(disconnectTime, now)
	for _, m := range missed {
		if err := p.messenger.Send(m); err != nil {
			if c.logger != nil {
				c.logger.Warn("replay send failed", "participant", p.ID, "error", err)
			}
			break
		}
	}
	return ControlResponse{Kind: CtrlOK, ParticipantID: p.ID}
}

// handleMulticast sends text to every connected participant and records
// one log entry, all under broadcastMu so concurrent multicasts from
// different senders are totally ordered and every peer observes the same
// relative order as the log.
func (c *Coordinator) handleMulticast(req ControlRequest) ControlResponse {
	c.broadcastMu.Lock()
	defer c.broadcastMu.Unlock()

	msg := ForwardMulticast{OriginID: req.ParticipantID, Text: req.Text}

	var firstSuccess time.Time
	for _, p := range c.manager.Connected() {
		sendTime := time.Now()
		if err := p.messenger.Send(msg); err != nil {
			if c.logger != nil {
				c.logger.Warn("multicast send failed, dropping peer", "participant", p.ID, "error", err)
			}
			c.manager.Disconnect(p.ID)
			continue
		}
		if firstSuccess.IsZero() {
			firstSuccess = sendTime
		}
	}

	if firstSuccess.IsZero() {
		firstSuccess = time.Now()
	}
	c.log.Append(req.ParticipantID, req.Text, firstSuccess)
	return ControlResponse{Kind: CtrlOK}
}
