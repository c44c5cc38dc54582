// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package relaycoord implements the pub/sub coordinator: a participant
// registry, a per-participant outbound messenger, and a time-windowed
// replay log, built on the wire codec shared with the rest of the
// project.
package relaycoord

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned when a frame body is shorter than its declared
// fields require.
var ErrTruncated = errors.New("relaycoord: truncated frame body")

// ControlKind identifies the variant of a ControlRequest, one of which
// arrives on its own TCP connection to the coordinator's control port.
type ControlKind byte

// Control request variants, per spec.md §4.11's per-participant dataflow.
const (
	CtrlRegister ControlKind = iota
	CtrlDeregister
	CtrlDisconnect
	CtrlReconnect
	CtrlMulticast
)

// ControlRequest is the single control-connection body. Port is meaningful
// for Register/Reconnect (the participant's listening port for forwarded
// multicasts); ParticipantID is meaningful for every variant except
// Register; Text carries the multicast payload.
type ControlRequest struct {
	Kind          ControlKind
	ParticipantID uint32
	Port          uint16
	Text          string
}

// EncodeControlRequest serializes r as:
// kind(1) | participantID(4) | port(2) | len(text)(4) | text.
func EncodeControlRequest(r ControlRequest) ([]byte, error) {
	out := make([]byte, 1+4+2+4+len(r.Text))
	off := 0
	out[off] = byte(r.Kind)
	off++
	binary.BigEndian.PutUint32(out[off:], r.ParticipantID)
	off += 4
	binary.BigEndian.PutUint16(out[off:], r.Port)
	off += 2
	binary.BigEndian.PutUint32(out[off:], uint32(len(r.Text)))
	off += 4
	copy(out[off:], r.Text)
	return out, nil
}

// DecodeControlRequest is the inverse of EncodeControlRequest.
func DecodeControlRequest(body []byte) (ControlRequest, error) {
	if len(body) < 1+4+2+4 {
		return ControlRequest{}, ErrTruncated
	}
	off := 0
	kind := ControlKind(body[off])
	off++
	id := binary.BigEndian.Uint32(body[off:])
	off += 4
	port := binary.BigEndian.Uint16(body[off:])
	off += 2
	textLen := binary.BigEndian.Uint32(body[off:])
	off += 4
	if len(body) < off+int(textLen) {
		return ControlRequest{}, ErrTruncated
	}
	text := string(body[off : off+int(textLen)])
	return ControlRequest{Kind: kind, ParticipantID: id, Port: port, Text: text}, nil
}

// ControlResponseKind identifies the variant of a ControlResponse.
type ControlResponseKind byte

// Control response variants.
const (
	CtrlOK ControlResponseKind = iota
	CtrlError
)

// ControlResponse is the single coordinator-to-participant reply.
// ParticipantID is populated on a successful Register, echoing the id the
// coordinator assigned.
type ControlResponse struct {
	Kind          ControlResponseKind
	ParticipantID uint32
	Message       string
}

// EncodeControlResponse serializes r as:
// kind(1) | participantID(4) | len(message)(4) | message.
func EncodeControlResponse(r ControlResponse) ([]byte, error) {
	out := make([]byte, 1+4+4+len(r.Message))
	off := 0
	out[off] = byte(r.Kind)
	off++
	binary.BigEndian.PutUint32(out[off:], r.ParticipantID)
	off += 4
	binary.BigEndian.PutUint32(out[off:], uint32(len(r.Message)))
	off += 4
	copy(out[off:], r.Message)
	return out, nil
}

// DecodeControlResponse is the inverse of EncodeControlResponse.
func DecodeControlResponse(body []byte) (ControlResponse, error) {
	if len(body) < 1+4+4 {
		return ControlResponse{}, ErrTruncated
	}
	off := 0
	kind := ControlResponseKind(body[off])
	off++
	id := binary.BigEndian.Uint32(body[off:])
	off += 4
	msgLen := binary.BigEndian.Uint32(body[off:])
	off += 4
	if len(body) < off+int(msgLen) {
		return ControlResponse{}, ErrTruncated
	}
	msg := string(body[off : off+int(msgLen)])
	return ControlResponse{Kind: kind, ParticipantID: id, Message: msg}, nil
}

// ForwardMulticast is the body the coordinator sends on its outbound
// per-participant connection, both for live multicasts and for replayed
// log entries on reconnect.
type ForwardMulticast struct {
	OriginID uint32
	Text     string
}

// EncodeForwardMulticast serializes m as: originID(4) | len(text)(4) | text.
func EncodeForwardMulticast(m ForwardMulticast) ([]byte, error) {
	out := make([]byte, 4+4+len(m.Text))
	binary.BigEndian.PutUint32(out, m.OriginID)
	binary.BigEndian.PutUint32(out[4:], uint32(len(m.Text)))
	copy(out[8:], m.Text)
	return out, nil
}

// DecodeForwardMulticast is the inverse of EncodeForwardMulticast.
func DecodeForwardMulticast(body []byte) (ForwardMulticast, error) {
	if len(body) < 8 {
		return ForwardMulticast{}, ErrTruncated
	}
	originID := binary.BigEndian.Uint32(body)
	textLen := binary.BigEndian.Uint32(body[4:])
	if len(body) < 8+int(textLen) {
		return ForwardMulticast{}, ErrTruncated
	}
	return ForwardMulticast{OriginID: originID, Text: string(body[8 : 8+textLen])}, nil
}
