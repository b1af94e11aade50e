// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pstream

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameKind distinguishes a tagged-message frame from a bulk memory-block
// frame on the wire. These are the two payload kinds spec.md's framer
// boundary is required to carry.
type FrameKind byte

const (
	FrameMessage  FrameKind = 1
	FrameMemblock FrameKind = 2
)

func (k FrameKind) String() string {
	switch k {
	case FrameMessage:
		return "MESSAGE"
	case FrameMemblock:
		return "MEMBLOCK"
	default:
		return fmt.Sprintf("FRAME:%d", byte(k))
	}
}

// Frame is the parsed format of one wire frame: a fixed 8-byte header
// followed by a payload whose structure depends on Kind. The payload is
// either a proto.Message or a proto.MemblockHeader + chunk, decoded by the
// caller.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Encode encodes f in binary format.
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, 8+len(f.Payload))
	var hdr [8]byte
	hdr[0], hdr[1] = 'P', 'A'
	hdr[2] = byte(f.Kind)
	hdr[3] = 0 // reserved
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(f.Payload)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, f.Payload...)
	return buf
}

// WriteTo writes f to w in binary format. It satisfies io.WriterTo.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	var hdr [8]byte
	hdr[0], hdr[1] = 'P', 'A'
	hdr[2] = byte(f.Kind)
	binary.BigEndian.PutUint32(hdr[4:], uint32(len(f.Payload)))
	nw, err := w.Write(hdr[:])
	if err == nil && len(f.Payload) != 0 {
		var np int
		np, err = w.Write(f.Payload)
		nw += np
	}
	return int64(nw), err
}

// ReadFrom reads a frame from r in binary format. It satisfies io.ReaderFrom.
func (f *Frame) ReadFrom(r io.Reader) (int64, error) {
	var hdr [8]byte
	nr, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return int64(nr), fmt.Errorf("pstream: short frame header: %w", err)
	}
	if hdr[0] != 'P' || hdr[1] != 'A' {
		return int64(nr), fmt.Errorf("pstream: invalid frame magic %q", hdr[:2])
	}
	f.Kind = FrameKind(hdr[2])

	if n := binary.BigEndian.Uint32(hdr[4:]); n > 0 {
		f.Payload = make([]byte, int(n))
		var np int
		np, err = io.ReadFull(r, f.Payload)
		nr += np
		if err != nil {
			err = fmt.Errorf("pstream: short frame payload: %w", err)
		}
	} else {
		f.Payload = nil
	}
	return int64(nr), err
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%v, %d payload bytes)", f.Kind, len(f.Payload))
}
