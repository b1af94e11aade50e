// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import (
	"net"

	"github.com/nongcunshaoye/pulseaudio/pdispatch"
	"github.com/nongcunshaoye/pulseaudio/proto"
	"github.com/nongcunshaoye/pulseaudio/pstream"
)

// onConnected attaches the framer and reply dispatcher to a freshly dialed
// connection and kicks off the AUTH exchange, matching pa_context_connect's
// on_connection callback in the original source. If the Context has already
// left Connecting by the time the dial completes (e.g. Disconnect raced with
// it), the connection is simply closed.
func (c *Context) onConnected(conn net.Conn) {
	c.attach(pstream.IO(conn, conn), conn)
}

// attach wires ch as the Context's framer and kicks off the AUTH exchange.
// conn is retained only so the terminal-transition teardown path has
// something to close if the framer was never fully attached; it may be nil,
// which is how ConnectViaChannel drives the handshake over an in-memory
// Channel in tests.
func (c *Context) attach(ch pstream.Channel, conn net.Conn) {
	unref := c.refGuard()
	defer unref()

	c.mu.Lock()
	if c.state != Connecting {
		c.mu.Unlock()
		ch.Close()
		return
	}
	ps := pstream.New(ch)
	pd := pdispatch.New(c.serverEventTable())
	c.conn, c.ps, c.pd = conn, ps, pd
	c.mu.Unlock()

	ps.OnDie(c.onTransportDie)
	ps.OnPacket(c.onPacket)
	ps.OnMemblock(c.onMemblock)

	c.sendAuth()
}

// ConnectViaChannel drives the same handshake as Connect, but over an
// already-established Channel instead of dialing a socketclient address,
// and with an explicit cookie instead of one loaded from disk. It exists for
// tests (see the pulsetest package) that need to exercise the state machine
// without a real transport or a real cookie file.
func (c *Context) ConnectViaChannel(ch pstream.Channel, cookie [CookieSize]byte) error {
	unref := c.refGuard()
	defer unref()

	if c.State() != Unconnected {
		panic("pulseaudio: ConnectViaChannel called outside Unconnected state")
	}

	c.mu.Lock()
	c.cookie = cookie
	c.mu.Unlock()

	c.transition(Connecting)
	c.attach(ch, nil)
	return nil
}

func (c *Context) sendAuth() {
	c.mu.Lock()
	tag := c.nextTagLocked()
	cookie := c.cookie
	ps, pd := c.ps, c.pd
	c.mu.Unlock()

	// The target state must become observable before the request can
	// possibly be answered: pd.RegisterReply and the send both happen on
	// this goroutine, but the reply arrives on the pstream receive
	// goroutine, which could otherwise dispatch into onSetupReply while
	// c.State() still reads Connecting and fall into its default case.
	c.transition(Authorizing)

	pd.RegisterReply(tag, defaultReplyTimeout, c.onSetupReply)

	var b proto.Builder
	b.PutBytes(cookie[:])
	msg := proto.Message{Command: proto.CommandAuth, Tag: tag, Body: b.Bytes()}
	if err := ps.SendMessage(msg.Encode()); err != nil {
		c.fail(ErrConnectionTerminated)
		return
	}
	c.metrics.packetsSent.Add(1)
}

func (c *Context) sendSetName() {
	c.mu.Lock()
	tag := c.nextTagLocked()
	name := c.name
	ps, pd := c.ps, c.pd
	c.mu.Unlock()

	c.transition(SettingName)

	pd.RegisterReply(tag, defaultReplyTimeout, c.onSetupReply)

	var b proto.Builder
	b.PutString(name)
	msg := proto.Message{Command: proto.CommandSetClientName, Tag: tag, Body: b.Bytes()}
	if err := ps.SendMessage(msg.Encode()); err != nil {
		c.fail(ErrConnectionTerminated)
		return
	}
	c.metrics.packetsSent.Add(1)
}

// onSetupReply handles the reply to either leg of the handshake: AUTH (while
// Authorizing) or SET_NAME (while SettingName). A non-REPLY answer at either
// step fails the Context with the errno decodeError recovers from the wire;
// a REPLY advances to the next step, matching setup_complete_callback in the
// original source.
func (c *Context) onSetupReply(msg proto.Message) {
	unref := c.refGuard()
	defer unref()

	switch c.State() {
	case Authorizing:
		if msg.Command != proto.CommandReply {
			if err := c.decodeError(msg); err != nil {
				c.fail(ErrProtocol)
				return
			}
			c.transition(Failed)
			return
		}
		c.sendSetName()
	case SettingName:
		if msg.Command != proto.CommandReply {
			if err := c.decodeError(msg); err != nil {
				c.fail(ErrProtocol)
				return
			}
			c.transition(Failed)
			return
		}
		c.transition(Ready)
	default:
		// The Context left the handshake states some other way (disconnect,
		// transport death) before this reply arrived; nothing to do.
	}
}

func (c *Context) onTransportDie(err error) {
	unref := c.refGuard()
	defer unref()
	c.fail(ErrConnectionTerminated)
}

func (c *Context) onPacket(payload []byte) {
	unref := c.refGuard()
	defer unref()

	msg, err := proto.DecodeMessage(payload)
	if err != nil {
		c.fail(ErrProtocol)
		return
	}
	c.metrics.packetsRecv.Add(1)

	c.mu.Lock()
	pd := c.pd
	c.mu.Unlock()
	if pd == nil {
		return
	}
	if err := pd.Run(msg); err != nil {
		c.fail(ErrProtocol)
	}
}

func (c *Context) onMemblock(channel uint32, delta int32, chunk []byte) {
	unref := c.refGuard()
	defer unref()

	c.mu.Lock()
	s := c.recordStreams[channel]
	c.mu.Unlock()
	if s == nil {
		// A memblock for a channel the core has no record stream for is
		// silently dropped: it may be trailing data for a stream that was
		// just killed.
		return
	}
	s.Deliver(chunk)
}
