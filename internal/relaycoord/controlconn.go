// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/wire"
)

// controlReadDeadline bounds each socket read while assembling one
// ControlRequest frame, so a pool cancellation is observed within a second
// even on an idle connection.
const controlReadDeadline = 1 * time.Second

const controlReadBufferSize = 1024

// controlConn serves exactly one ControlRequest per TCP connection, per
// spec.md §6 ("one TCP connection per control message"): read a single
// frame, dispatch it against the Coordinator, write one response, done.
type controlConn struct {
	conn   net.Conn
	coord  *Coordinator
	logger *slog.Logger

	parser *wire.Parser[ControlRequest]
	buf    [controlReadBufferSize]byte
}

func newControlConn(conn net.Conn, coord *Coordinator, logger *slog.Logger) *controlConn {
	return &controlConn{conn: conn, coord: coord, logger: logger, parser: wire.NewParser(DecodeControlRequest)}
}

func (c *controlConn) SetUp() pool.Status { return pool.Running }

func (c *controlConn) RunAtomic() pool.Status {
	c.conn.SetReadDeadline(time.Now().Add(controlReadDeadline))
	n, err := c.conn.Read(c.buf[:])
	if n > 0 {
		c.parser.Feed(c.buf[:n])
	}
	if err != nil {
		if isTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
			return pool.Running
		}
		return pool.Failed
	}
	if !c.parser.HasCompleteMessage() {
		return pool.Running
	}

	req, ok, decErr := c.parser.TakeMessage()
	if decErr != nil || !ok {
		if c.logger != nil {
			c.logger.Warn("coordinator control decode error", "error", decErr)
		}
		return pool.Failed
	}

	resp := c.coord.dispatch(req, c.conn)
	c.writeResponse(resp)
	return pool.Done
}

func (c *controlConn) CleanUp() {}

func (c *controlConn) writeResponse(resp ControlResponse) {
	frame, err := wire.Serialize(resp, EncodeControlResponse)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("coordinator failed to encode control response", "error", err)
		}
		return
	}
	total := 0
	for total < len(frame) {
		n, err := c.conn.Write(frame[total:])
		total += n
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("coordinator failed to write control response", "error", err)
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	type timeoutter interface{ Timeout() bool }
	if te, ok := err.(timeoutter); ok {
		return te.Timeout()
	}
	return false
}
