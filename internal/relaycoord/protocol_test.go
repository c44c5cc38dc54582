// Copyright (c) 2026 The meshwire Authors. All rights reserved.

package relaycoord

import (
	"reflect"
	"testing"
)

func TestControlRequestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []ControlRequest{
		{Kind: CtrlRegister, Port: 9001},
		{Kind: CtrlDeregister, ParticipantID: 3},
		{Kind: CtrlDisconnect, ParticipantID: 7},
		{Kind: CtrlReconnect, ParticipantID: 7, Port: 9002},
		{Kind: CtrlMulticast, ParticipantID: 1, Text: "hello mesh"},
	}
	for _, want := range cases {
		body, err := EncodeControlRequest(want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeControlRequest(body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
}

func TestControlResponseEncodeDecodeRoundTrip(t *testing.T) {
	cases := []ControlResponse{
		{Kind: CtrlOK, ParticipantID: 5},
		{Kind: CtrlError, Message: "unknown participant"},
	}
	for _, want := range cases {
		body, err := EncodeControlResponse(want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeControlResponse(body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	}
}

func TestForwardMulticastEncodeDecodeRoundTrip(t *testing.T) {
	want := ForwardMulticast{OriginID: 9, Text: "reconnect replay"}
	body, err := EncodeForwardMulticast(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeForwardMulticast(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeControlRequestRejectsTruncatedBody(t *testing.T) {
	if _, err := DecodeControlRequest([]byte{byte(CtrlRegister)}); err == nil {
		t.Fatal("expected an error decoding a truncated control request")
	}
}

func TestDecodeForwardMulticastRejectsTruncatedBody(t *testing.T) {
	if _, err := DecodeForwardMulticast([]byte{0, 0, 0, 1}); err == nil {
		t.Fatal("expected an error decoding a truncated forward-multicast body")
	}
}
