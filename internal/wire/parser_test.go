// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package wire

import (
	"bytes"
	"errors"
	"testing"
)

func encodeString(s string) ([]byte, error) { return []byte(s), nil }
func decodeString(b []byte) (string, error) { return string(b), nil }

func TestRoundTrip(t *testing.T) {
	frame, err := Serialize("a parameter string value", encodeString)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p := NewParser(decodeString)
	p.Feed(frame)
	if !p.HasCompleteMessage() {
		t.Fatalf("expected complete message")
	}
	msg, ok, err := p.TakeMessage()
	if err != nil || !ok {
		t.Fatalf("TakeMessage: ok=%v err=%v", ok, err)
	}
	if msg != "a parameter string value" {
		t.Fatalf("got %q", msg)
	}
	if p.HasOverflow() {
		t.Fatalf("unexpected overflow")
	}
}

func TestSplitOnEveryBoundary(t *testing.T) {
	body := "the quick brown fox jumps over the lazy dog"
	frame, err := Serialize(body, encodeString)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	splits := []int{1, 4, 4 + len(body)/2, len(frame) - 1}
	for _, at := range splits {
		if at <= 0 || at >= len(frame) {
			continue
		}
		t.Run("", func(t *testing.T) {
			p := NewParser(decodeString)
			p.Feed(frame[:at])
			if p.HasCompleteMessage() {
				t.Fatalf("split at %d: completed too early", at)
			}
			p.Feed(frame[at:])
			if !p.HasCompleteMessage() {
				t.Fatalf("split at %d: never completed", at)
			}
			msg, ok, err := p.TakeMessage()
			if err != nil || !ok || msg != body {
				t.Fatalf("split at %d: got %q ok=%v err=%v", at, msg, ok, err)
			}
		})
	}
}

func TestByteAtATime(t *testing.T) {
	body := "fragmented byte by byte"
	frame, err := Serialize(body, encodeString)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	p := NewParser(decodeString)
	for i := 0; i < len(frame); i++ {
		p.Feed(frame[i : i+1])
	}
	msg, ok, err := p.TakeMessage()
	if err != nil || !ok || msg != body {
		t.Fatalf("got %q ok=%v err=%v", msg, ok, err)
	}
}

func TestBackToBackFrames(t *testing.T) {
	f1, _ := Serialize("first", encodeString)
	f2, _ := Serialize("second", encodeString)

	p := NewParser(decodeString)
	p.Feed(append(append([]byte{}, f1...), f2...))

	msg1, ok, err := p.TakeMessage()
	if err != nil || !ok || msg1 != "first" {
		t.Fatalf("first message: %q ok=%v err=%v", msg1, ok, err)
	}
	if !p.HasOverflow() {
		t.Fatalf("expected overflow to hold the second frame")
	}
	overflow := p.TakeOverflow()

	p2 := NewParser(decodeString)
	p2.Feed(overflow)
	msg2, ok, err := p2.TakeMessage()
	if err != nil || !ok || msg2 != "second" {
		t.Fatalf("second message: %q ok=%v err=%v", msg2, ok, err)
	}
}

func TestCoalescedFeedIntoSameParser(t *testing.T) {
	f1, _ := Serialize("a", encodeString)
	f2, _ := Serialize("b", encodeString)
	f3, _ := Serialize("c", encodeString)
	all := bytes.Join([][]byte{f1, f2, f3}, nil)

	p := NewParser(decodeString)
	p.Feed(all)

	var got []string
	for {
		msg, ok, err := p.TakeMessage()
		if err != nil {
			t.Fatalf("TakeMessage: %v", err)
		}
		if !ok {
			if p.HasOverflow() {
				p.Feed(p.TakeOverflow())
				continue
			}
			break
		}
		got = append(got, msg)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v", got)
	}
}

func TestEmptyBodyFrame(t *testing.T) {
	frame, _ := Serialize("", encodeString)
	p := NewParser(decodeString)
	p.Feed(frame)
	msg, ok, err := p.TakeMessage()
	if err != nil || !ok || msg != "" {
		t.Fatalf("got %q ok=%v err=%v", msg, ok, err)
	}
}

func TestDecodeFailureResetsButKeepsOverflow(t *testing.T) {
	failing := func(b []byte) (string, error) {
		return "", errors.New("bad body")
	}
	f1, _ := Serialize("bad", encodeString)
	f2, _ := Serialize("good", encodeString)

	p := NewParser(failing)
	p.Feed(f1)
	_, ok, err := p.TakeMessage()
	if ok || !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got ok=%v err=%v", ok, err)
	}
	if p.HasCompleteMessage() {
		t.Fatalf("parser should have reset after decode failure")
	}

	p.Feed(f2)
	if !p.HasCompleteMessage() {
		t.Fatalf("parser should accept the next frame after a decode failure")
	}
}

func TestFeedEmptySliceIsNoOp(t *testing.T) {
	p := NewParser(decodeString)
	p.Feed(nil)
	p.Feed([]byte{})
	if p.HasCompleteMessage() {
		t.Fatalf("unexpected complete message")
	}
}
