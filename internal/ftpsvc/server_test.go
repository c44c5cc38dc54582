// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package ftpsvc

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djpetti/meshwire/internal/chunked"
	"github.com/djpetti/meshwire/internal/pool"
	"github.com/djpetti/meshwire/internal/wire"
)

type testClient struct {
	t      *testing.T
	conn   net.Conn
	parser *wire.Parser[Response]
	buf    [4096]byte
}

func newTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &testClient{t: t, conn: conn, parser: wire.NewParser(DecodeResponse)}
}

func (c *testClient) send(req Request) {
	c.t.Helper()
	frame, err := wire.Serialize(req, EncodeRequest)
	if err != nil {
		c.t.Fatalf("serialize request: %v", err)
	}
	if _, err := writeFull(c.conn, frame); err != nil {
		c.t.Fatalf("write request: %v", err)
	}
}

func (c *testClient) recv() Response {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !c.parser.HasCompleteMessage() {
		n, err := c.conn.Read(c.buf[:])
		if n > 0 {
			c.parser.Feed(c.buf[:n])
		}
		if err != nil {
			c.t.Fatalf("read response: %v", err)
		}
	}
	resp, ok, err := c.parser.TakeMessage()
	if err != nil || !ok {
		c.t.Fatalf("decode response: ok=%v err=%v", ok, err)
	}
	return resp
}

func listenerPair(t *testing.T) (*net.TCPListener, *net.TCPListener) {
	t.Helper()
	cmd, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen command: %v", err)
	}
	term, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen terminate: %v", err)
	}
	return cmd, term
}

func TestServerPutThenGetRoundTrip(t *testing.T) {
	cmdLn, termLn := listenerPair(t)
	root := t.TempDir()

	p := pool.New(16)
	defer p.Close()
	srv := NewServer(cmdLn, termLn, p, root, nil)
	defer srv.Close()

	client := newTestClient(t, cmdLn.Addr().String())
	defer client.conn.Close()

	client.send(Request{Kind: ReqPut, Path: "x.txt"})
	putResp := client.recv()
	if putResp.Kind != RespPut || putResp.CommandID == 0 {
		t.Fatalf("unexpected put response: %+v", putResp)
	}

	contents := []byte{1, 2, 3, 4, 5}
	sendChunk(t, client.conn, contents)
	finalResp := client.recv()
	if finalResp.Kind != RespOK {
		t.Fatalf("unexpected final response after put: %+v", finalResp)
	}

	client.send(Request{Kind: ReqGet, Path: "x.txt"})
	getResp := client.recv()
	if getResp.Kind != RespGet || getResp.CommandID == 0 {
		t.Fatalf("unexpected get response: %+v", getResp)
	}

	got := recvChunks(t, client)
	if !bytes.Equal(got, contents) {
		t.Fatalf("got %v, want %v", got, contents)
	}
}

// TestServerPutCoalescedWithChunkData writes the ReqPut frame and its entire
// chunk stream in a single conn.Write, so the server's first socket read
// routinely swallows chunk bytes as Request-parser overflow. Those bytes
// must still reach the file (see Agent.RunAtomic's putPreread handling),
// not get silently dropped.
func TestServerPutCoalescedWithChunkData(t *testing.T) {
	cmdLn, termLn := listenerPair(t)
	root := t.TempDir()

	p := pool.New(16)
	defer p.Close()
	srv := NewServer(cmdLn, termLn, p, root, nil)
	defer srv.Close()

	client := newTestClient(t, cmdLn.Addr().String())
	defer client.conn.Close()

	reqFrame, err := wire.Serialize(Request{Kind: ReqPut, Path: "coalesced.bin"}, EncodeRequest)
	if err != nil {
		t.Fatalf("serialize request: %v", err)
	}
	contents := []byte("small payload sent right behind the request frame")
	chunkFrame, err := encodeChunkForTest(t, chunked.Chunk{Contents: contents, IsLast: true})
	if err != nil {
		t.Fatalf("encode chunk: %v", err)
	}

	if _, err := writeFull(client.conn, append(reqFrame, chunkFrame...)); err != nil {
		t.Fatalf("write coalesced request+chunk: %v", err)
	}

	putResp := client.recv()
	if putResp.Kind != RespPut || putResp.CommandID == 0 {
		t.Fatalf("unexpected put response: %+v", putResp)
	}
	finalResp := client.recv()
	if finalResp.Kind != RespOK {
		t.Fatalf("unexpected final response after put: %+v", finalResp)
	}

	got, err := os.ReadFile(filepath.Join(root, "coalesced.bin"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Fatalf("got %q, want %q", got, contents)
	}
}

func encodeChunkForTest(t *testing.T, c chunked.Chunk) ([]byte, error) {
	t.Helper()
	return wire.Serialize(c, chunked.EncodeChunk)
}

func TestServerTerminateStopsGetBetweenChunks(t *testing.T) {
	cmdLn, termLn := listenerPair(t)
	root := t.TempDir()

	p := pool.New(16)
	defer p.Close()
	srv := NewServer(cmdLn, termLn, p, root, nil)
	defer srv.Close()

	client := newTestClient(t, cmdLn.Addr().String())
	defer client.conn.Close()

	// Large enough to overrun the kernel socket buffer: since this test
	// never reads a byte before sending Terminate, the sender blocks on
	// Write once the buffer fills, giving the termination request a real
	// window to land between chunks instead of racing a transfer that
	// completes before it is even read.
	large := bytes.Repeat([]byte("q"), 4*1024*1024)
	client.send(Request{Kind: ReqPut, Path: "big.bin"})
	client.recv()
	sendChunk(t, client.conn, large)
	client.recv()

	client.send(Request{Kind: ReqGet, Path: "big.bin"})
	getResp := client.recv()

	termClient, err := net.Dial("tcp", termLn.Addr().String())
	if err != nil {
		t.Fatalf("dial terminate port: %v", err)
	}
	defer termClient.Close()

	frame, err := wire.Serialize(Request{Kind: ReqTerminate, CommandID: getResp.CommandID}, EncodeRequest)
	if err != nil {
		t.Fatalf("serialize terminate: %v", err)
	}
	if _, err := writeFull(termClient, frame); err != nil {
		t.Fatalf("write terminate: %v", err)
	}

	// The transfer should stop without the client ever assembling the
	// full payload: read whatever chunks do arrive until the connection
	// goes quiet, well before the server would finish an untouched
	// transfer.
	client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received int
	buf := make([]byte, 4096)
	for {
		n, err := client.conn.Read(buf)
		received += n
		if err != nil {
			break
		}
	}
	if received >= len(large) {
		t.Fatalf("expected termination to cut the transfer short, got %d of %d bytes", received, len(large))
	}
}

// sendChunk frames contents as a single sequence of chunked.Chunk frames
// (splitting at chunked.MaxChunkSize, same as chunked.Sender) and writes
// them directly to conn, playing the role of an FTP client's upload side.
func sendChunk(t *testing.T, conn net.Conn, contents []byte) {
	t.Helper()
	sender := chunked.NewSender(contents)
	for !sender.SentCompleteFile() {
		if _, err := sender.SendNextChunk(conn); err != nil {
			t.Fatalf("send chunk: %v", err)
		}
	}
}

func recvChunks(t *testing.T, c *testClient) []byte {
	t.Helper()
	var out []byte
	parser := wire.NewParser(chunked.DecodeChunk)
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		n, err := c.conn.Read(c.buf[:])
		if n > 0 {
			parser.Feed(c.buf[:n])
			for parser.HasCompleteMessage() {
				chunk, ok, decErr := parser.TakeMessage()
				if decErr != nil || !ok {
					t.Fatalf("decode chunk: ok=%v err=%v", ok, decErr)
				}
				out = append(out, chunk.Contents...)
				if chunk.IsLast {
					return out
				}
			}
		}
		if err != nil {
			t.Fatalf("read chunk stream: %v", err)
		}
	}
}
