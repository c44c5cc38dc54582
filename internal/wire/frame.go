// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package wire implements the length-prefixed framing used for every
// message exchanged between peers: a 4-byte big-endian length prefix
// followed by that many bytes of opaque payload. The codec itself never
// interprets the payload; encoding/decoding of the structured body is
// supplied by the caller, so the same framing serves the FTP service, the
// pub/sub coordinator, chunked transfers, and the message-passing layer.
package wire

import (
	"encoding/binary"
	"errors"
)

// LengthPrefixSize is the size in bytes of the frame length prefix.
const LengthPrefixSize = 4

// ErrDecode wraps a body decode failure so callers can distinguish it from
// transport-level errors. The parser is still usable after this error: its
// internal state has already been reset, preserving any overflow bytes.
var ErrDecode = errors.New("wire: failed to decode frame body")

// Encoder turns a message into its wire body. It must be deterministic and
// must not itself emit the length prefix — Serialize adds that.
type Encoder[T any] func(T) ([]byte, error)

// Decoder turns a frame body back into a message.
type Decoder[T any] func([]byte) (T, error)

// Serialize produces a full frame — length prefix plus encoded body — for
// msg using enc.
func Serialize[T any](msg T, enc Encoder[T]) ([]byte, error) {
	body, err := enc(msg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out[:LengthPrefixSize], uint32(len(body)))
	copy(out[LengthPrefixSize:], body)
	return out, nil
}
