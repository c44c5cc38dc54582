// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/queue"
	"golang.org/x/time/rate"
)

// popTimeout bounds each queue pop so the task can observe cancellation
// even when nothing is queued to send.
const popTimeout = 1 * time.Second

// writeDeadline bounds each write attempt.
const writeDeadline = 1 * time.Second

// ResultFunc delivers the outcome of a non-async send: n is the number of
// bytes written, or -1 for a non-timeout write error.
type ResultFunc func(id MessageID, n int)

// SenderTask owns one socket and a shared send queue, writing frames in
// enqueue order. A single write error never fails the task outright — the
// next loop iteration either succeeds or the paired ReceiverTask observes
// the peer's EOF and fails first, which is how the owner learns the
// connection is gone.
type SenderTask struct {
	conn     net.Conn
	in       *queue.Queue[SendQueueMessage]
	onResult ResultFunc
	logger   *slog.Logger
	limiter  *rate.Limiter // optional; nil means unlimited
}

// NewSenderTask creates a SenderTask writing to conn, pulling frames from
// in, and reporting non-async outcomes through onResult. limiter may be
// nil to send unthrottled.
func NewSenderTask(conn net.Conn, in *queue.Queue[SendQueueMessage], onResult ResultFunc, limiter *rate.Limiter, logger *slog.Logger) *SenderTask {
	return &SenderTask{conn: conn, in: in, onResult: onResult, limiter: limiter, logger: logger}
}

// GetConn returns the underlying connection; see ReceiverTask.GetConn.
func (t *SenderTask) GetConn() net.Conn { return t.conn }

// SetUp does no work.
func (t *SenderTask) SetUp() pool.Status { return pool.Running }

// RunAtomic pops at most one frame and attempts to write it in full.
func (t *SenderTask) RunAtomic() pool.Status {
	msg, ok := t.in.PopTimed(popTimeout)
	if !ok {
		return pool.Running
	}

	if t.limiter != nil {
		// Pace outbound bytes; WaitN blocks but is itself bounded by the
		// queue/caller lifetime, not by this task's timeout, mirroring the
		// teacher's throttle design (a deliberate operator dial, not a
		// correctness requirement).
		_ = t.limiter.WaitN(context.Background(), len(msg.Payload))
	}

	t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	n, err := writeFull(t.conn, msg.Payload)

	if err != nil {
		if isTimeout(err) {
			// Requeue the whole message; a partial write on a transient
			// timeout is treated as if nothing went out, since the peer's
			// framing can't recover from a half-written frame anyway.
			t.in.Push(msg)
			return pool.Running
		}
		if t.logger != nil {
			t.logger.Warn("sender write error", "error", err)
		}
		if !msg.Async {
			t.onResult(msg.ID, -1)
		}
		return pool.Running
	}

	if !msg.Async {
		t.onResult(msg.ID, n)
	}
	return pool.Running
}

// CleanUp is a no-op; see ReceiverTask.CleanUp.
func (t *SenderTask) CleanUp() {}

// writeFull writes all of p to w, looping over partial writes.
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
