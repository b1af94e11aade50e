// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package stream implements the minimal playback/record child object the
// core owns and force-terminates on a Context's terminal transition. Audio
// rendering, PCM decoding, and flow control are out of scope (spec.md §1);
// this package only carries what the core itself reads and writes: state,
// channel id, and for record streams, the memblock read callback.
package stream

import "fmt"

// State mirrors the subset of the Context state enum that applies to a
// child stream: a stream only ever observes Ready, Failed, or Terminated
// from its owning Context, plus an initial Unready before it is bound to a
// server-assigned channel id.
type State int

const (
	Unready State = iota
	Ready
	Failed
	Terminated
)

func (s State) String() string {
	switch s {
	case Unready:
		return "unready"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Direction distinguishes a playback stream (the client writes audio to the
// daemon) from a record stream (the daemon delivers memblocks to the
// client).
type Direction int

const (
	Playback Direction = iota
	Record
)

// ReadCallback is invoked with a slice of the memblock delivered for a
// record stream's channel. The slice aliases the pstream receive buffer and
// is invalidated by the next frame the Stream's pstream receives; the
// callback must copy anything it needs to retain, matching the implicit
// contract spec.md §9 documents for the original's memblock callback.
type ReadCallback func(data []byte)

// A Stream is one playback or record object owned by a Context. ChannelID
// is assigned by the server once the corresponding create-stream exchange
// completes; until then it is 0 and the stream is not reachable from the
// Context's channel-indexed lookup.
type Stream struct {
	Direction Direction
	ChannelID uint32

	state   State
	stateCB func(*Stream)
	readCB  ReadCallback
}

// New creates an unready Stream for the given direction.
func New(dir Direction) *Stream {
	return &Stream{Direction: dir, state: Unready}
}

// State reports the stream's current state.
func (s *Stream) State() State { return s.state }

// SetState transitions the stream's state and, if set, invokes its state
// callback; setting the state the stream already has does nothing. Called by
// the owning Context's terminal fan-out and its stream-killed handling,
// mirroring pa_stream_set_state from the original source.
func (s *Stream) SetState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.stateCB != nil {
		s.stateCB(s)
	}
}

// SetStateCallback installs cb to be invoked on every SetState call that
// changes the state.
func (s *Stream) SetStateCallback(cb func(*Stream)) { s.stateCB = cb }

// SetReadCallback installs the memblock delivery callback for a record
// stream. It has no effect on a playback stream.
func (s *Stream) SetReadCallback(cb ReadCallback) { s.readCB = cb }

// Deliver forwards a memblock chunk to the read callback, if any. Called by
// the owning Context's memblock routing path for a record stream matched by
// channel id.
func (s *Stream) Deliver(data []byte) {
	if s.Direction == Record && s.readCB != nil {
		s.readCB(data)
	}
}
