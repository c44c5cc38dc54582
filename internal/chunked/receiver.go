// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package chunked

import (
	"net"

	"github.com/djpetti/meshwire/internal/wire"
)

// Receiver accumulates a framed Chunk stream into one contiguous buffer,
// tracking the sender's IsLast flag.
type Receiver struct {
	parser   *wire.Parser[Chunk]
	buf      []byte
	complete bool
}

// NewReceiver creates an empty Receiver.
func NewReceiver() *Receiver {
	return &Receiver{parser: wire.NewParser(DecodeChunk)}
}

// Seed feeds data that was already read off the wire (e.g. chunk bytes a
// caller's own frame parser swallowed as overflow past some other message)
// into the receiver before its first socket read, and drains any chunk that
// data already completes. Callers that pulled bytes for this stream off the
// socket through a different parser must route them through Seed rather
// than discarding them.
func (r *Receiver) Seed(data []byte) {
	if len(data) == 0 {
		return
	}
	r.parser.Feed(data)
	r.drainComplete()
}

// ReceiveNextChunk drains any chunk already buffered (from a prior Seed or
// a coalesced read); only if none remains does it read up to ReadBufferSize
// more bytes from conn. It returns the number of bytes read from the socket
// (0 when it only drained a buffered chunk) and the read error, if any; a
// peer close surfaces as conn.Read's error (io.EOF).
func (r *Receiver) ReceiveNextChunk(conn net.Conn) (int, error) {
	if r.parser.HasCompleteMessage() {
		r.drainComplete()
		return 0, nil
	}

	var scratch [ReadBufferSize]byte
	n, err := conn.Read(scratch[:])
	if n > 0 {
		r.parser.Feed(scratch[:n])
		r.drainComplete()
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// drainComplete processes every complete Chunk currently buffered in the
// parser, re-feeding the parser's own overflow after each one so that
// multiple frames coalesced into a single read (routine: MaxChunkSize=1000
// vs ReadBufferSize=4096) are all consumed instead of stranding the trailing
// ones in the parser's overflow buffer.
func (r *Receiver) drainComplete() {
	for r.parser.HasCompleteMessage() {
		chunk, ok, decErr := r.parser.TakeMessage()
		if decErr != nil || !ok {
			break
		}
		r.buf = append(r.buf, chunk.Contents...)
		if chunk.IsLast {
			r.complete = true
		}
		if r.parser.HasOverflow() {
			r.parser.Feed(r.parser.TakeOverflow())
		}
	}
}

// Complete reports whether an IsLast chunk has been observed.
func (r *Receiver) Complete() bool {
	return r.complete
}

// GetContents returns everything accumulated so far and resets the
// Receiver's buffer and complete flag for the next transfer. The parser's
// framing state (including any overflow into the next chunk stream) is left
// untouched.
func (r *Receiver) GetContents() []byte {
	out := r.buf
	r.buf = nil
	r.complete = false
	return out
}

// Cleanup drains the remainder of any half-framed chunk on conn so the
// socket isn't abandoned mid-frame after a mid-transfer termination. It
// reads until a complete frame boundary is reached or the connection ends.
func (r *Receiver) Cleanup(conn net.Conn) {
	for !r.parser.HasCompleteMessage() {
		if r.parser.HasOverflow() {
			r.parser.Feed(r.parser.TakeOverflow())
			continue
		}
		var scratch [ReadBufferSize]byte
		n, err := conn.Read(scratch[:])
		if n > 0 {
			r.parser.Feed(scratch[:n])
		}
		if err != nil {
			return
		}
	}
	// Discard the final, now-complete frame without appending its contents;
	// the transfer was terminated, so its payload is never delivered.
	r.parser.TakeMessage()
}
