// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pstream

import (
	"sync"

	"github.com/creachadair/taskgroup"
	"github.com/nongcunshaoye/pulseaudio/proto"
)

// DieCallback is invoked exactly once when the stream's channel fails or is
// closed, by either end, mirroring pa_pstream_set_die_callback.
type DieCallback func(err error)

// PacketCallback is invoked for each received tagged-message frame.
type PacketCallback func(payload []byte)

// MemblockCallback is invoked for each received memory-block frame, with the
// channel id, sequence delta, and chunk decoded from proto.MemblockHeader.
type MemblockCallback func(channel uint32, delta int32, chunk []byte)

// DrainCallback is invoked once the send queue transitions from non-empty to
// empty, mirroring pa_pstream_set_drain_callback. It fires at most once per
// registration; the caller must re-register to be notified again.
type DrainCallback func()

// A Stream owns a single Channel and runs its receive loop on a dedicated
// goroutine, dispatching decoded frames to registered callbacks. It is the
// concrete form of the "pstream" collaborator in spec.md: the core never
// parses wire bytes itself, it only receives decoded payloads from a Stream.
//
// A Stream must not be used after Close.
type Stream struct {
	ch Channel

	outMu     sync.Mutex // guards sending and the outstanding counter
	outstand  int
	drainOnce DrainCallback

	die      DieCallback
	packet   PacketCallback
	memblock MemblockCallback

	tasks *taskgroup.Group
}

// New creates a Stream over ch and starts its receive loop. The supplied
// callbacks may be nil; OnDie, OnPacket, and OnMemblock can also be used to
// install them after construction, as long as that happens before any
// frame can arrive (i.e. before the remote end sends anything).
func New(ch Channel) *Stream {
	s := &Stream{ch: ch, tasks: taskgroup.New(nil)}
	s.tasks.Go(s.recvLoop)
	return s
}

// OnDie installs the die callback.
func (s *Stream) OnDie(cb DieCallback) { s.die = cb }

// OnPacket installs the tagged-message callback.
func (s *Stream) OnPacket(cb PacketCallback) { s.packet = cb }

// OnMemblock installs the memory-block callback.
func (s *Stream) OnMemblock(cb MemblockCallback) { s.memblock = cb }

func (s *Stream) recvLoop() error {
	for {
		f, err := s.ch.Recv()
		if err != nil {
			if s.die != nil {
				s.die(err)
			}
			return nil
		}
		switch f.Kind {
		case FrameMessage:
			if s.packet != nil {
				s.packet(f.Payload)
			}
		case FrameMemblock:
			hdr, chunk, err := proto.DecodeMemblockHeader(f.Payload)
			if err != nil {
				if s.die != nil {
					s.die(err)
				}
				return nil
			}
			if s.memblock != nil {
				s.memblock(hdr.Channel, hdr.Delta, chunk)
			}
		default:
			// Unrecognized frame kinds are silently discarded, matching the
			// protocol's "unknown extension" tolerance.
		}
	}
}

// SendMessage sends a tagged-message frame with the given payload.
func (s *Stream) SendMessage(payload []byte) error {
	return s.send(&Frame{Kind: FrameMessage, Payload: payload})
}

// SendMemblock sends a memory-block frame for the given channel, delta, and
// chunk bytes.
func (s *Stream) SendMemblock(channel uint32, delta int32, chunk []byte) error {
	hdr := proto.MemblockHeader{Channel: channel, Delta: delta}
	payload := append(hdr.Encode(), chunk...)
	return s.send(&Frame{Kind: FrameMemblock, Payload: payload})
}

func (s *Stream) send(f *Frame) error {
	s.outMu.Lock()
	s.outstand++
	s.outMu.Unlock()

	err := s.ch.Send(f)

	s.outMu.Lock()
	s.outstand--
	drained := s.outstand == 0
	cb := s.drainOnce
	if drained {
		s.drainOnce = nil
	}
	s.outMu.Unlock()

	if drained && cb != nil {
		cb()
	}
	return err
}

// IsPending reports whether any send is currently in flight.
func (s *Stream) IsPending() bool {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.outstand != 0
}

// SetDrainCallback registers cb to be invoked the next time the send queue
// becomes empty. Passing nil clears any previously registered callback
// without firing it. If the queue is already empty, SetDrainCallback does
// not fire cb synchronously; callers (the drain coordinator) must check
// IsPending themselves before registering, matching
// pa_pstream_set_drain_callback's contract in the original source.
func (s *Stream) SetDrainCallback(cb DrainCallback) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.drainOnce = cb
}

// Close closes the underlying channel and waits for the receive loop to
// exit.
func (s *Stream) Close() error {
	err := s.ch.Close()
	s.tasks.Wait()
	return err
}
