// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package proto

import (
	"encoding/binary"
	"fmt"
)

// A Builder accumulates a tagged message body. The zero value is ready for
// use as an empty builder, mirroring chirp/packet.Builder.
type Builder struct {
	buf []byte
}

// PutUint32 appends v to b in big-endian order.
func (b *Builder) PutUint32(v uint32) { b.buf = binary.BigEndian.AppendUint32(b.buf, v) }

// PutString appends a length-prefixed UTF-8 string to b. The length is a
// big-endian uint32, matching the arbitrary-byte-array encoding below so
// that strings and raw cookies share one decode path.
func (b *Builder) PutString(s string) { b.PutBytes([]byte(s)) }

// PutBytes appends a length-prefixed byte array to b.
func (b *Builder) PutBytes(v []byte) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(len(v)))
	b.buf = append(b.buf, v...)
}

// PutBool appends a single-byte Boolean to b.
func (b *Builder) PutBool(ok bool) {
	if ok {
		b.buf = append(b.buf, 1)
	} else {
		b.buf = append(b.buf, 0)
	}
}

// Bytes reports the accumulated message body. The builder retains ownership
// of the returned slice.
func (b *Builder) Bytes() []byte { return b.buf }

// Len reports the number of bytes accumulated so far.
func (b *Builder) Len() int { return len(b.buf) }

// A Parser reads fields in order from a tagged message body.
type Parser struct {
	buf []byte
	err error
}

// NewParser returns a Parser over buf.
func NewParser(buf []byte) *Parser { return &Parser{buf: buf} }

// Err reports the first error encountered by the parser, if any.
func (p *Parser) Err() error { return p.err }

// EOF reports whether the parser has consumed its entire input and has not
// encountered an error. This backs the "REPLY body must be fully consumed"
// rule in the simple-ack submission pattern.
func (p *Parser) EOF() bool { return p.err == nil && len(p.buf) == 0 }

// GetUint32 decodes the next field as a big-endian uint32.
func (p *Parser) GetUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if len(p.buf) < 4 {
		p.err = fmt.Errorf("tagstruct: short uint32 (%d bytes)", len(p.buf))
		return 0
	}
	v := binary.BigEndian.Uint32(p.buf)
	p.buf = p.buf[4:]
	return v
}

// GetBytes decodes the next field as a length-prefixed byte array. The
// returned slice aliases the parser's input.
func (p *Parser) GetBytes() []byte {
	if p.err != nil {
		return nil
	}
	n := p.GetUint32()
	if p.err != nil {
		return nil
	}
	if uint64(n) > uint64(len(p.buf)) {
		p.err = fmt.Errorf("tagstruct: short byte array (want %d, have %d)", n, len(p.buf))
		return nil
	}
	v := p.buf[:n]
	p.buf = p.buf[n:]
	if n == 0 {
		return nil
	}
	return v
}

// GetString decodes the next field as a length-prefixed UTF-8 string.
func (p *Parser) GetString() string { return string(p.GetBytes()) }

// GetBool decodes the next field as a single-byte Boolean.
func (p *Parser) GetBool() bool {
	if p.err != nil {
		return false
	}
	if len(p.buf) < 1 {
		p.err = fmt.Errorf("tagstruct: short bool")
		return false
	}
	v := p.buf[0] != 0
	p.buf = p.buf[1:]
	return v
}
