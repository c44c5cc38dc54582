// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package ftpsvc

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/djpetti/meshwire/internal/activecmd"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/wire"
)

// terminateAgent serves one connection on the termination port: it reads
// Terminate requests and removes the named command id from the active set,
// with no response frame (the effect is observed by the command-port Agent
// polling activecmd.Contains between chunks).
type terminateAgent struct {
	conn   net.Conn
	active *activecmd.Registry
	logger *slog.Logger

	parser *wire.Parser[Request]
	buf    [readBufferSize]byte
}

func newTerminateAgent(conn net.Conn, active *activecmd.Registry, logger *slog.Logger) *terminateAgent {
	return &terminateAgent{conn: conn, active: active, logger: logger, parser: wire.NewParser(DecodeRequest)}
}

func (t *terminateAgent) SetUp() pool.Status { return pool.Running }

func (t *terminateAgent) RunAtomic() pool.Status {
	t.conn.SetReadDeadline(time.Now().Add(readDeadline))
	n, err := t.conn.Read(t.buf[:])
	if n > 0 {
		t.parser.Feed(t.buf[:n])
	}
	if err != nil {
		if isTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
			return pool.Running
		}
		return pool.Failed
	}
	if !t.parser.HasCompleteMessage() {
		return pool.Running
	}

	req, ok, decErr := t.parser.TakeMessage()
	if decErr != nil || !ok {
		return pool.Failed
	}
	if req.Kind == ReqTerminate {
		t.active.Delete(req.CommandID)
		if t.logger != nil {
			t.logger.Debug("terminated command", "command_id", req.CommandID)
		}
	}
	return pool.Running
}

func (t *terminateAgent) CleanUp() {}
