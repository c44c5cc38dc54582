// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package chunked

import (
	"net"

	"github.com/djpetti/meshwire/internal/wire"
)

// Sender streams one in-memory payload as a sequence of framed Chunks.
type Sender struct {
	payload []byte
	pos     int
}

// NewSender creates a Sender over the full contents of payload.
func NewSender(payload []byte) *Sender {
	return &Sender{payload: payload}
}

// SentCompleteFile reports whether every byte of the payload has been
// handed to SendNextChunk.
func (s *Sender) SentCompleteFile() bool {
	return s.pos >= len(s.payload)
}

// SendNextChunk builds one Chunk of up to MaxChunkSize bytes starting at the
// current cursor, frames it, and writes it to conn in a partial-write loop.
// It returns the number of frame bytes written, or -1 and the error when
// encoding or writing fails.
func (s *Sender) SendNextChunk(conn net.Conn) (int, error) {
	remaining := len(s.payload) - s.pos
	n := remaining
	if n > MaxChunkSize {
		n = MaxChunkSize
	}

	chunk := Chunk{
		Contents: s.payload[s.pos : s.pos+n],
		IsLast:   s.pos+MaxChunkSize >= len(s.payload),
	}

	frame, err := wire.Serialize(chunk, EncodeChunk)
	if err != nil {
		return -1, err
	}

	written, err := writeFull(conn, frame)
	if err != nil {
		return -1, err
	}

	s.pos += n
	return written, nil
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
