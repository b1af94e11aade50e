// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package pulsetest provides an in-memory fake daemon for exercising a
// Context's state machine without a real socket, the same way the teacher
// package it is adapted from (peers) provided in-memory chirp.Peer pairs for
// testing.
package pulsetest

import (
	"sync"

	"github.com/nongcunshaoye/pulseaudio/proto"
	"github.com/nongcunshaoye/pulseaudio/pstream"
)

// Server is a minimal stand-in for the native audio daemon: it answers the
// AUTH/SET_NAME handshake and otherwise lets the test script drive what
// happens next by calling Reply, ErrorReply, Push, or PushMemblock directly.
type Server struct {
	ch pstream.Channel
	ps *pstream.Stream

	mu         sync.Mutex
	authCookie func(cookie []byte) bool
	received   []proto.Message
}

// NewPair creates a connected Channel pair and wraps the server side in a
// Server, returning the client side for the caller to pass to
// Context.ConnectViaChannel.
func NewPair() (client pstream.Channel, srv *Server) {
	c, s := pstream.Direct()
	srv = &Server{ch: s}
	srv.ps = pstream.New(s)
	srv.ps.OnPacket(srv.onPacket)
	return c, srv
}

// AcceptAnyCookie is the default AUTH policy: every cookie is accepted.
func (s *Server) AcceptAnyCookie() { s.SetAuthPolicy(func([]byte) bool { return true }) }

// SetAuthPolicy installs a predicate that decides whether an AUTH's cookie is
// accepted. The default, if never called, accepts any cookie.
func (s *Server) SetAuthPolicy(ok func(cookie []byte) bool) {
	s.mu.Lock()
	s.authCookie = ok
	s.mu.Unlock()
}

// Received returns every message the server has seen so far, in arrival
// order.
func (s *Server) Received() []proto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]proto.Message(nil), s.received...)
}

func (s *Server) onPacket(payload []byte) {
	msg, err := proto.DecodeMessage(payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.received = append(s.received, msg)
	policy := s.authCookie
	s.mu.Unlock()

	switch msg.Command {
	case proto.CommandAuth:
		p := proto.NewParser(msg.Body)
		cookie := p.GetBytes()
		ok := policy == nil || policy(cookie)
		if ok {
			s.Reply(msg.Tag)
		} else {
			s.ErrorReply(msg.Tag, 1 /* ErrAuthKey, by the client's own enumeration */)
		}
	case proto.CommandSetClientName:
		s.Reply(msg.Tag)
	case proto.CommandExit:
		// Fire-and-forget: no reply expected.
	}
}

// Reply sends a bare REPLY for tag.
func (s *Server) Reply(tag uint32) error {
	msg := proto.Message{Command: proto.CommandReply, Tag: tag}
	return s.ps.SendMessage(msg.Encode())
}

// ErrorReply sends an ERROR for tag carrying the given wire error code.
func (s *Server) ErrorReply(tag uint32, code uint32) error {
	var b proto.Builder
	b.PutUint32(code)
	msg := proto.Message{Command: proto.CommandError, Tag: tag, Body: b.Bytes()}
	return s.ps.SendMessage(msg.Encode())
}

// Push sends an untagged server-initiated command (tag 0), e.g.
// SUBSCRIBE_EVENT or REQUEST, with a body built by build.
func (s *Server) Push(cmd proto.Command, build func(*proto.Builder)) error {
	var b proto.Builder
	if build != nil {
		build(&b)
	}
	msg := proto.Message{Command: cmd, Tag: 0, Body: b.Bytes()}
	return s.ps.SendMessage(msg.Encode())
}

// PushMemblock sends a raw memory-block frame for channel.
func (s *Server) PushMemblock(channel uint32, delta int32, chunk []byte) error {
	return s.ps.SendMemblock(channel, delta, chunk)
}

// Close closes the server's side of the channel.
func (s *Server) Close() error { return s.ps.Close() }
