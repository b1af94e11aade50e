// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package proto

import (
	"encoding/binary"
	"fmt"
)

// A Message is the payload of a tagged wire message: a command, a
// client-assigned tag, and a command-specific tagstruct body.
type Message struct {
	Command Command
	Tag     uint32
	Body    []byte
}

// Encode encodes m in binary format: command, tag, then the raw body.
func (m Message) Encode() []byte {
	buf := make([]byte, 8+len(m.Body))
	binary.BigEndian.PutUint32(buf[0:], uint32(m.Command))
	binary.BigEndian.PutUint32(buf[4:], m.Tag)
	copy(buf[8:], m.Body)
	return buf
}

// DecodeMessage decodes data as a tagged Message.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < 8 {
		return Message{}, fmt.Errorf("proto: short message header (%d bytes)", len(data))
	}
	m := Message{
		Command: Command(binary.BigEndian.Uint32(data[0:])),
		Tag:     binary.BigEndian.Uint32(data[4:]),
	}
	if len(data) > 8 {
		m.Body = data[8:]
	}
	return m, nil
}

func (m Message) String() string {
	return fmt.Sprintf("Message(%v, tag=%d, %d body bytes)", m.Command, m.Tag, len(m.Body))
}

// A MemblockHeader precedes the raw bytes of a memory-block frame: the
// server-assigned channel id the block belongs to, and a signed sequence
// delta, which the framer passes through to its memblock callback
// unchanged. The chunk bytes themselves
// follow immediately and are not length-prefixed, since the underlying
// frame already carries the total payload length.
type MemblockHeader struct {
	Channel uint32
	Delta   int32
}

// Encode encodes h in binary format.
func (h MemblockHeader) Encode() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:], h.Channel)
	binary.BigEndian.PutUint32(buf[4:], uint32(h.Delta))
	return buf[:]
}

// DecodeMemblockHeader decodes the fixed-size header from the front of data
// and returns it along with the remaining chunk bytes, which alias data.
func DecodeMemblockHeader(data []byte) (MemblockHeader, []byte, error) {
	if len(data) < 8 {
		return MemblockHeader{}, nil, fmt.Errorf("proto: short memblock header (%d bytes)", len(data))
	}
	h := MemblockHeader{
		Channel: binary.BigEndian.Uint32(data[0:]),
		Delta:   int32(binary.BigEndian.Uint32(data[4:])),
	}
	return h, data[8:], nil
}
