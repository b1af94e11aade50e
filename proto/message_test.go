// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package proto

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMessageEncodeDecode(t *testing.T) {
	m := Message{Command: CommandAuth, Tag: 7, Body: []byte("cookie")}
	got, err := DecodeMessage(m.Encode())
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("DecodeMessage (-want +got):\n%s", diff)
	}
}

func TestMessageEncodeDecodeEmptyBody(t *testing.T) {
	m := Message{Command: CommandReply, Tag: 3}
	got, err := DecodeMessage(m.Encode())
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if len(got.Body) != 0 {
		t.Errorf("Body: got %v, want empty", got.Body)
	}
}

func TestDecodeMessageShort(t *testing.T) {
	if _, err := DecodeMessage([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeMessage on a short header should fail")
	}
}

func TestMemblockHeaderEncodeDecode(t *testing.T) {
	h := MemblockHeader{Channel: 9, Delta: -3}
	chunk := []byte("pcm-bytes")
	buf := append(h.Encode(), chunk...)

	gotH, gotChunk, err := DecodeMemblockHeader(buf)
	if err != nil {
		t.Fatalf("DecodeMemblockHeader: %v", err)
	}
	if diff := cmp.Diff(h, gotH); diff != "" {
		t.Errorf("DecodeMemblockHeader header (-want +got):\n%s", diff)
	}
	if string(gotChunk) != string(chunk) {
		t.Errorf("chunk: got %q, want %q", gotChunk, chunk)
	}
}

func TestDecodeMemblockHeaderShort(t *testing.T) {
	if _, _, err := DecodeMemblockHeader([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeMemblockHeader on short input should fail")
	}
}
