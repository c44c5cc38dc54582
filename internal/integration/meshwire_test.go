// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package integration

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/djpetti/meshwire/internal/chunked"
	"github.com/djpetti/meshwire/internal/ftpsvc"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/relaycoord"
	"github.com/djpetti/meshwire/internal/wire"
)

func loopbackListener(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

// TestEndToEnd_FTPPutThenGet drives ftpsvc.Server over a real 127.0.0.1:0
// listener pair: a client puts a file, then gets it back, verifying the
// chunked transfer round trips byte-for-byte.
func TestEndToEnd_FTPPutThenGet(t *testing.T) {
	commandLn := loopbackListener(t)
	terminateLn := loopbackListener(t)

	p := pool.New(0)
	defer p.Close()
	root := t.TempDir()
	server := ftpsvc.NewServer(commandLn, terminateLn, p, root, nil)
	defer server.Close()

	conn, err := net.Dial("tcp", commandLn.Addr().String())
	if err != nil {
		t.Fatalf("dial command port: %v", err)
	}
	defer conn.Close()

	parser := wire.NewParser(ftpsvc.DecodeResponse)
	var buf [4096]byte
	recv := func() ftpsvc.Response {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for !parser.HasCompleteMessage() {
			n, err := conn.Read(buf[:])
			if n > 0 {
				parser.Feed(buf[:n])
			}
			if err != nil {
				t.Fatalf("read response: %v", err)
			}
		}
		resp, ok, decErr := parser.TakeMessage()
		if decErr != nil || !ok {
			t.Fatalf("decode response: ok=%v err=%v", ok, decErr)
		}
		return resp
	}
	send := func(req ftpsvc.Request) {
		t.Helper()
		frame, err := wire.Serialize(req, ftpsvc.EncodeRequest)
		if err != nil {
			t.Fatalf("serialize request: %v", err)
		}
		if _, err := conn.Write(frame); err != nil {
			t.Fatalf("write request: %v", err)
		}
	}

	payload := []byte("integration test payload, chunked end to end")

	send(ftpsvc.Request{Kind: ftpsvc.ReqPut, Path: "greeting.txt"})
	putResp := recv()
	if putResp.Kind != ftpsvc.RespPut {
		t.Fatalf("unexpected put response: %+v", putResp)
	}
	sender := chunked.NewSender(payload)
	for !sender.SentCompleteFile() {
		if _, err := sender.SendNextChunk(conn); err != nil {
			t.Fatalf("send chunk: %v", err)
		}
	}
	if ok := recv(); ok.Kind != ftpsvc.RespOK {
		t.Fatalf("unexpected put completion response: %+v", ok)
	}

	send(ftpsvc.Request{Kind: ftpsvc.ReqGet, Path: "greeting.txt"})
	getResp := recv()
	if getResp.Kind != ftpsvc.RespGet {
		t.Fatalf("unexpected get response: %+v", getResp)
	}
	receiver := chunked.NewReceiver()
	for !receiver.Complete() {
		if _, err := receiver.ReceiveNextChunk(conn); err != nil {
			t.Fatalf("receive chunk: %v", err)
		}
	}
	if !bytes.Equal(receiver.GetContents(), payload) {
		t.Fatalf("round trip mismatch: got %q, want %q", receiver.GetContents(), payload)
	}

	send(ftpsvc.Request{Kind: ftpsvc.ReqStatus})
	statusResp := recv()
	if statusResp.Kind != ftpsvc.RespStatus {
		t.Fatalf("unexpected status response: %+v", statusResp)
	}
}

// fakeSubscriber stands in for a pub/sub peer: it listens on its own
// loopback port and records every ForwardMulticast the coordinator
// delivers to it.
type fakeSubscriber struct {
	ln  *net.TCPListener
	msg chan relaycoord.ForwardMulticast
}

func newFakeSubscriber(t *testing.T) *fakeSubscriber {
	t.Helper()
	ln := loopbackListener(t)
	fs := &fakeSubscriber{ln: ln, msg: make(chan relaycoord.ForwardMulticast, 8)}
	go func() {
		conn, err := fs.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		parser := wire.NewParser(relaycoord.DecodeForwardMulticast)
		var buf [4096]byte
		for {
			n, err := conn.Read(buf[:])
			if n > 0 {
				parser.Feed(buf[:n])
				for parser.HasCompleteMessage() {
					m, ok, decErr := parser.TakeMessage()
					if decErr == nil && ok {
						fs.msg <- m
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return fs
}

func (fs *fakeSubscriber) port() uint16 {
	return uint16(fs.ln.Addr().(*net.TCPAddr).Port)
}

// TestEndToEnd_CoordinatorRegisterAndMulticast drives relaycoord.Coordinator
// over a real 127.0.0.1:0 control listener: a participant registers, then a
// multicast sent through the control port is delivered to its subscriber
// socket.
func TestEndToEnd_CoordinatorRegisterAndMulticast(t *testing.T) {
	ln := loopbackListener(t)
	p := pool.New(0)
	defer p.Close()
	coord, err := relaycoord.NewCoordinator(ln, p, 10*time.Second, "@every 1h", "", nil)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer coord.Close()

	sub := newFakeSubscriber(t)
	defer sub.ln.Close()

	doControl := func(conn net.Conn, req relaycoord.ControlRequest) relaycoord.ControlResponse {
		t.Helper()
		frame, err := wire.Serialize(req, relaycoord.EncodeControlRequest)
		if err != nil {
			t.Fatalf("serialize control request: %v", err)
		}
		if _, err := conn.Write(frame); err != nil {
			t.Fatalf("write control request: %v", err)
		}
		parser := wire.NewParser(relaycoord.DecodeControlResponse)
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var buf [4096]byte
		for !parser.HasCompleteMessage() {
			n, err := conn.Read(buf[:])
			if n > 0 {
				parser.Feed(buf[:n])
			}
			if err != nil {
				t.Fatalf("read control response: %v", err)
			}
		}
		resp, ok, decErr := parser.TakeMessage()
		if decErr != nil || !ok {
			t.Fatalf("decode control response: ok=%v err=%v", ok, decErr)
		}
		return resp
	}

	regConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial control port: %v", err)
	}
	defer regConn.Close()
	regResp := doControl(regConn, relaycoord.ControlRequest{Kind: relaycoord.CtrlRegister, Port: sub.port()})
	if regResp.Kind != relaycoord.CtrlOK {
		t.Fatalf("unexpected register response: %+v", regResp)
	}

	mcConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial control port: %v", err)
	}
	defer mcConn.Close()
	mcResp := doControl(mcConn, relaycoord.ControlRequest{
		Kind:          relaycoord.CtrlMulticast,
		ParticipantID: regResp.ParticipantID,
		Text:          "end to end hello",
	})
	if mcResp.Kind != relaycoord.CtrlOK {
		t.Fatalf("unexpected multicast response: %+v", mcResp)
	}

	select {
	case got := <-sub.msg:
		if got.Text != "end to end hello" {
			t.Fatalf("unexpected delivered multicast: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for forwarded multicast")
	}
}
