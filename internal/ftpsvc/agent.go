// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package ftpsvc

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/djpetti/meshwire/internal/activecmd"
	"github.com/djpetti/meshwire/internal/chunked"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/sysstats"
	"github.com/djpetti/meshwire/internal/wire"
)

// readDeadline bounds each socket read while waiting for the next Request,
// so a pool cancellation between requests is observed within one second.
const readDeadline = 1 * time.Second

// readBufferSize is the read chunk size while assembling Request frames.
const readBufferSize = 1024

// Agent runs the per-client FTP state machine described by spec.md §4.10:
// read one Request, dispatch it, reply, repeat until Quit or a transport
// failure. Get/Put stream their payload with C7 directly on the same
// socket; mid-transfer cancellation is signalled out-of-band through the
// active-command registry, not through pool cancellation.
type Agent struct {
	conn    net.Conn
	handler FileHandler
	active  *activecmd.Registry
	logger  *slog.Logger

	parser *wire.Parser[Request]
	buf    [readBufferSize]byte

	disconnected bool
}

// NewAgent creates an Agent that will serve Requests arriving on conn
// against handler, registering in-flight transfer ids in active.
func NewAgent(conn net.Conn, handler FileHandler, active *activecmd.Registry, logger *slog.Logger) *Agent {
	return &Agent{
		conn:    conn,
		handler: handler,
		active:  active,
		logger:  logger,
		parser:  wire.NewParser(DecodeRequest),
	}
}

// SetUp does no work; the connection is already live when the Agent is
// submitted.
func (a *Agent) SetUp() pool.Status { return pool.Running }

// RunAtomic performs one bounded read, and if it completes a Request
// frame, dispatches and replies to it before returning. A coalesced read can
// leave a second Request (or, after ReqPut, the start of its chunk stream)
// already buffered as parser overflow; that case is handled without
// blocking on a fresh socket read first.
func (a *Agent) RunAtomic() pool.Status {
	if !a.parser.HasCompleteMessage() {
		a.conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, err := a.conn.Read(a.buf[:])
		if n > 0 {
			a.parser.Feed(a.buf[:n])
		}
		if err != nil {
			if isTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
				return pool.Running
			}
			return pool.Failed
		}
	}
	if !a.parser.HasCompleteMessage() {
		return pool.Running
	}

	req, ok, decErr := a.parser.TakeMessage()
	if decErr != nil || !ok {
		if a.logger != nil {
			a.logger.Warn("ftp agent decode error", "error", decErr)
		}
		return pool.Failed
	}

	// Bytes past this frame, if any, belong to whatever the client sends
	// next. For every request but ReqPut that's another Request frame, so
	// feed it straight back into the same parser for the next iteration
	// (mirroring msgpassing.Node's overflow requeue). ReqPut is immediately
	// followed by a raw C7 chunk stream instead, so its overflow is routed
	// to handlePut's chunked.Receiver rather than fed back here.
	var putPreread []byte
	if a.parser.HasOverflow() {
		if req.Kind == ReqPut {
			putPreread = a.parser.TakeOverflow()
		} else {
			a.parser.Feed(a.parser.TakeOverflow())
		}
	}

	if req.Kind == ReqPut {
		a.handlePut(req, putPreread)
	} else {
		a.dispatch(req)
	}
	if a.disconnected {
		return pool.Done
	}
	return pool.Running
}

// CleanUp is a no-op; the owning Server closes the socket once the Agent
// task has joined.
func (a *Agent) CleanUp() {}

// dispatch handles every Request kind except ReqPut, which RunAtomic routes
// directly to handlePut so it can carry along any chunk-stream bytes
// already buffered as parser overflow.
func (a *Agent) dispatch(req Request) {
	switch req.Kind {
	case ReqGet:
		a.handleGet(req)
	case ReqDelete:
		err := a.handler.Delete(req.Path)
		a.respondOKOrError(err)
	case ReqChangeDir:
		err := a.handler.ChangeDir(req.Path)
		a.respondOKOrError(err)
	case ReqMakeDir:
		err := a.handler.MakeDir(req.Path)
		a.respondOKOrError(err)
	case ReqUpDir:
		err := a.handler.UpDir()
		a.respondOKOrError(err)
	case ReqPwd:
		path, err := a.handler.Pwd()
		if err != nil {
			a.respondOKOrError(err)
			return
		}
		a.writeResponse(Response{Kind: RespPwd, Path: path})
	case ReqList:
		entries, err := a.handler.List()
		if err != nil {
			a.respondOKOrError(err)
			return
		}
		a.writeResponse(Response{Kind: RespList, Entries: entries})
	case ReqStatus:
		snap := sysstats.Collect(a.handler.Root())
		a.writeResponse(Response{Kind: RespStatus, DiskFreePercent: snap.DiskFreePercent, LoadAverage1: snap.LoadAverage1})
	case ReqQuit:
		a.writeResponse(Response{Kind: RespOK})
		a.disconnected = true
	default:
		a.writeResponse(Response{Kind: RespError, Message: "unknown request kind"})
	}
}

func (a *Agent) handleGet(req Request) {
	id := a.active.GenerateID()
	a.writeResponse(Response{Kind: RespGet, CommandID: id})

	data, err := a.handler.Get(req.Path)
	if err != nil {
		a.active.Delete(id)
		a.writeResponse(Response{Kind: RespError, Message: err.Error()})
		return
	}

	sender := chunked.NewSender(data)
	for !sender.SentCompleteFile() {
		if !a.active.Contains(id) {
			// Terminated between chunks: stop sending, treat as a clean
			// completion from the client's point of view.
			break
		}
		if _, err := sender.SendNextChunk(a.conn); err != nil {
			break
		}
	}
	a.active.Delete(id)
}

// handlePut receives a Put's chunk stream. preread carries any chunk bytes
// the request parser already swallowed as overflow past the Put frame
// itself (routine with readBufferSize 1024 and small files); it is seeded
// into the receiver before the first socket read so those bytes aren't
// lost.
func (a *Agent) handlePut(req Request, preread []byte) {
	id := a.active.GenerateID()
	a.writeResponse(Response{Kind: RespPut, CommandID: id})

	receiver := chunked.NewReceiver()
	receiver.Seed(preread)
	terminated := false
	for !receiver.Complete() {
		if !a.active.Contains(id) {
			terminated = true
			receiver.Cleanup(a.conn)
			break
		}
		if _, err := receiver.ReceiveNextChunk(a.conn); err != nil {
			a.active.Delete(id)
			a.writeResponse(Response{Kind: RespError, Message: err.Error()})
			return
		}
	}
	a.active.Delete(id)

	if terminated {
		a.writeResponse(Response{Kind: RespOK})
		return
	}
	if err := a.handler.Put(req.Path, receiver.GetContents()); err != nil {
		a.writeResponse(Response{Kind: RespError, Message: err.Error()})
		return
	}
	a.writeResponse(Response{Kind: RespOK})
}

func (a *Agent) respondOKOrError(err error) {
	if err != nil {
		a.writeResponse(Response{Kind: RespError, Message: err.Error()})
		return
	}
	a.writeResponse(Response{Kind: RespOK})
}

func (a *Agent) writeResponse(resp Response) {
	frame, err := wire.Serialize(resp, EncodeResponse)
	if err != nil {
		if a.logger != nil {
			a.logger.Error("ftp agent failed to encode response", "error", err)
		}
		return
	}
	if _, err := writeFull(a.conn, frame); err != nil {
		if a.logger != nil {
			a.logger.Warn("ftp agent failed to write response", "error", err)
		}
	}
}

func writeFull(w net.Conn, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func isTimeout(err error) bool {
	type timeoutter interface{ Timeout() bool }
	if te, ok := err.(timeoutter); ok {
		return te.Timeout()
	}
	return false
}
