// Copyright (c) 2026 The meshwire Authors. All rights reserved.

// Package ftpsvc implements the chunked FTP-style file service: a
// per-client request/response state machine built on the wire codec,
// chunked transfer, active-command registry, and file access manager.
package ftpsvc

import (
	"encoding/binary"
	"errors"
	"math"
)

// RequestKind identifies the variant of a Request frame.
type RequestKind byte

// Request variants, per the FTP agent's dispatch table.
const (
	ReqGet RequestKind = iota
	ReqPut
	ReqDelete
	ReqChangeDir
	ReqMakeDir
	ReqUpDir
	ReqPwd
	ReqList
	ReqQuit
	ReqTerminate
	ReqStatus
)

// ErrTruncated is returned when a frame body is shorter than its declared
// fields require.
var ErrTruncated = errors.New("ftpsvc: truncated frame body")

// Request is the single client-to-server command frame. Path is meaningful
// for Get/Put/Delete/ChangeDir/MakeDir; CommandID is meaningful only for
// Terminate, sent on the termination port.
type Request struct {
	Kind      RequestKind
	Path      string
	CommandID uint32
}

// EncodeRequest serializes r as: kind(1) | len(path)(4) | path | commandID(4).
func EncodeRequest(r Request) ([]byte, error) {
	out := make([]byte, 1+4+len(r.Path)+4)
	out[0] = byte(r.Kind)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(r.Path)))
	copy(out[5:5+len(r.Path)], r.Path)
	binary.BigEndian.PutUint32(out[5+len(r.Path):], r.CommandID)
	return out, nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(body []byte) (Request, error) {
	if len(body) < 5 {
		return Request{}, ErrTruncated
	}
	pathLen := binary.BigEndian.Uint32(body[1:5])
	if len(body) < int(5+pathLen+4) {
		return Request{}, ErrTruncated
	}
	path := string(body[5 : 5+pathLen])
	cmdID := binary.BigEndian.Uint32(body[5+pathLen:])
	return Request{Kind: RequestKind(body[0]), Path: path, CommandID: cmdID}, nil
}

// ResponseKind identifies the variant of a Response frame.
type ResponseKind byte

// Response variants.
const (
	RespOK ResponseKind = iota
	RespError
	RespGet
	RespPut
	RespPwd
	RespList
	RespStatus
)

// Response is the single server-to-client reply frame covering every
// Request variant's result. DiskFreePercent and LoadAverage1 are populated
// only on RespStatus, reported via internal/sysstats the same way the
// teacher's agent reports host stats in its own status frames.
type Response struct {
	Kind            ResponseKind
	CommandID       uint32
	Path            string
	Message         string
	Entries         []string
	DiskFreePercent float64
	LoadAverage1    float64
}

// EncodeResponse serializes r as:
// kind(1) | commandID(4) | len(path)(4) | path | len(message)(4) | message |
// entryCount(4) | (len(entry)(4) | entry)* | diskFreePercent(8) | loadAverage1(8).
func EncodeResponse(r Response) ([]byte, error) {
	size := 1 + 4 + 4 + len(r.Path) + 4 + len(r.Message) + 4 + 8 + 8
	for _, e := range r.Entries {
		size += 4 + len(e)
	}
	out := make([]byte, size)
	off := 0
	out[off] = byte(r.Kind)
	off++
	binary.BigEndian.PutUint32(out[off:], r.CommandID)
	off += 4
	binary.BigEndian.PutUint32(out[off:], uint32(len(r.Path)))
	off += 4
	off += copy(out[off:], r.Path)
	binary.BigEndian.PutUint32(out[off:], uint32(len(r.Message)))
	off += 4
	off += copy(out[off:], r.Message)
	binary.BigEndian.PutUint32(out[off:], uint32(len(r.Entries)))
	off += 4
	for _, e := range r.Entries {
		binary.BigEndian.PutUint32(out[off:], uint32(len(e)))
		off += 4
		off += copy(out[off:], e)
	}
	binary.BigEndian.PutUint64(out[off:], math.Float64bits(r.DiskFreePercent))
	off += 8
	binary.BigEndian.PutUint64(out[off:], math.Float64bits(r.LoadAverage1))
	return out, nil
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(body []byte) (Response, error) {
	var r Response
	if len(body) < 1+4+4 {
		return r, ErrTruncated
	}
	off := 0
	r.Kind = ResponseKind(body[off])
	off++
	r.CommandID = binary.BigEndian.Uint32(body[off:])
	off += 4

	pathLen, err := readLen(body, off)
	if err != nil {
		return r, err
	}
	off += 4
	if len(body) < off+int(pathLen) {
		return r, ErrTruncated
	}
	r.Path = string(body[off : off+int(pathLen)])
	off += int(pathLen)

	msgLen, err := readLen(body, off)
	if err != nil {
		return r, err
	}
	off += 4
	if len(body) < off+int(msgLen) {
		return r, ErrTruncated
	}
	r.Message = string(body[off : off+int(msgLen)])
	off += int(msgLen)

	entryCount, err := readLen(body, off)
	if err != nil {
		return r, err
	}
	off += 4
	if entryCount > 0 {
		r.Entries = make([]string, 0, entryCount)
		for i := uint32(0); i < entryCount; i++ {
			eLen, err := readLen(body, off)
			if err != nil {
				return r, err
			}
			off += 4
			if len(body) < off+int(eLen) {
				return r, ErrTruncated
			}
			r.Entries = append(r.Entries, string(body[off:off+int(eLen)]))
			off += int(eLen)
		}
	}

	if len(body) < off+16 {
		return r, ErrTruncated
	}
	r.DiskFreePercent = math.Float64frombits(binary.BigEndian.Uint64(body[off:]))
	off += 8
	r.LoadAverage1 = math.Float64frombits(binary.BigEndian.Uint64(body[off:]))
	return r, nil
}

func readLen(body []byte, off int) (uint32, error) {
	if len(body) < off+4 {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(body[off:]), nil
}
