// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package pulseaudio implements the client-side session state machine for a
// native audio daemon protocol: connection setup, authentication, tagged
// request/reply dispatch, and the bookkeeping a daemon client needs to carry
// a handful of playback and record streams through a connection's lifetime.
//
// The core never performs blocking I/O itself. It drives a Scheduler to run
// continuations and delegates framing to pstream, reply correlation to
// pdispatch, and transport dialing to socketclient; the Context ties these
// together into the seven-state lifecycle described by State.
package pulseaudio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nongcunshaoye/pulseaudio/memblock"
	"github.com/nongcunshaoye/pulseaudio/pdispatch"
	"github.com/nongcunshaoye/pulseaudio/proto"
	"github.com/nongcunshaoye/pulseaudio/pstream"
	"github.com/nongcunshaoye/pulseaudio/socketclient"
	"github.com/nongcunshaoye/pulseaudio/stream"
)

// EnvDefaultServer names the environment variable consulted when Connect is
// called with an empty server argument.
const EnvDefaultServer = "PULSE_SERVER"

// DefaultServer is the address used when neither a server argument nor
// EnvDefaultServer is set.
const DefaultServer = "/run/pulse/native"

// defaultReplyTimeout bounds how long a tagged request waits for a reply
// before pdispatch synthesizes a CommandTimeout, matching the fixed timeout
// pa_context_new installs on its pdispatch in the original source.
const defaultReplyTimeout = 5 * time.Second

// A Context is one client session: it owns a transport connection, the
// framer and reply-dispatch collaborators layered over it, and the set of
// playback/record streams created on that connection. A Context is created
// with an initial reference count of 1 and is safe for concurrent use.
type Context struct {
	name string
	loop Scheduler

	mu     sync.Mutex
	state  State
	errno  ErrorCode
	ctag   uint32
	cookie [CookieSize]byte

	conn net.Conn
	ps   *pstream.Stream
	pd   *pdispatch.Dispatcher

	mstat *memblock.Stat

	playbackStreams map[uint32]*stream.Stream
	recordStreams   map[uint32]*stream.Stream
	streams         []*stream.Stream

	replyOps map[uint32]*Operation
	allOps   map[*Operation]struct{}

	stateCB     func(*Context)
	subscribeCB func(c *Context, event, index uint32)
	requestCB   func(s *stream.Stream, requestedBytes uint32)

	metrics *contextMetrics
	ref     atomic.Int32
}

// New creates a Context in the Unconnected state with an initial reference
// count of 1. loop may be nil, in which case DefaultScheduler is used. name
// must be non-empty; it is sent to the daemon during setup (spec.md §4.2).
//
// New performs no I/O: it only allocates the memblock-accounting counter the
// Context will hand to any stream created on it.
func New(loop Scheduler, name string) *Context {
	if name == "" {
		panic("pulseaudio: New called with empty name")
	}
	if loop == nil {
		loop = DefaultScheduler()
	}
	c := &Context{
		name:            name,
		loop:            loop,
		state:           Unconnected,
		mstat:           memblock.New(),
		playbackStreams: make(map[uint32]*stream.Stream),
		recordStreams:   make(map[uint32]*stream.Stream),
		replyOps:        make(map[uint32]*Operation),
		allOps:          make(map[*Operation]struct{}),
		metrics:         newContextMetrics(),
	}
	c.metrics.state.Set(Unconnected.String())
	c.ref.Store(1)
	return c
}

// State reports the Context's current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errno reports the reason code for the most recent failure, valid once
// State is Failed (ErrOk otherwise, unless a stale code was left over from a
// request-level failure that did not itself fail the Context).
func (c *Context) Errno() ErrorCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errno
}

// MemblockStat returns the Context's shared memory-block accounting
// counter. Collaborators that retain a reference to a block delivered
// through this Context should Ref it on handoff and Unref it on teardown.
func (c *Context) MemblockStat() *memblock.Stat { return c.mstat }

// SetStateCallback installs cb to be invoked on every state transition,
// including into Failed or Terminated. Passing nil clears it.
func (c *Context) SetStateCallback(cb func(*Context)) {
	c.mu.Lock()
	c.stateCB = cb
	c.mu.Unlock()
}

// SetSubscribeCallback installs cb to be invoked for each SUBSCRIBE_EVENT
// the daemon pushes. Passing nil clears it.
func (c *Context) SetSubscribeCallback(cb func(c *Context, event, index uint32)) {
	c.mu.Lock()
	c.subscribeCB = cb
	c.mu.Unlock()
}

// SetRequestCallback installs cb to be invoked when the daemon asks for more
// playback data on a stream (a REQUEST command). Passing nil clears it.
func (c *Context) SetRequestCallback(cb func(s *stream.Stream, requestedBytes uint32)) {
	c.mu.Lock()
	c.requestCB = cb
	c.mu.Unlock()
}

// Ref increments the reference count and returns c for chaining.
func (c *Context) Ref() *Context {
	c.ref.Add(1)
	return c
}

// Unref decrements the reference count. When it reaches zero, the Context is
// torn down: if it had not already reached a terminal state, it is forced
// into Terminated without firing the ordinary disconnect-initiated callback
// sequence beyond the usual terminal fan-out, matching context_free in the
// original source.
func (c *Context) Unref() {
	if c.ref.Add(-1) == 0 {
		c.transition(Terminated)
	}
}

// refGuard implements the re-entrancy discipline spec.md §5 requires of
// every externally callable routine: take a reference on entry, release it
// on exit, so a user callback invoked mid-routine cannot cause the Context
// to be torn down out from under the remaining code in that routine.
func (c *Context) refGuard() func() {
	c.Ref()
	return c.Unref
}

func (c *Context) nextTagLocked() uint32 {
	tag := c.ctag
	c.ctag++ // wraps on overflow; undetected reuse is a documented open question, not guarded
	return tag
}

func (c *Context) setErrno(code ErrorCode) {
	c.mu.Lock()
	c.errno = code
	c.mu.Unlock()
}

// fail records code as the failure reason and transitions to Failed. Once
// the Context is terminal, the recorded reason is left unchanged.
func (c *Context) fail(code ErrorCode) {
	c.mu.Lock()
	if !c.state.Terminal() {
		c.errno = code
	}
	c.mu.Unlock()
	c.transition(Failed)
}

// decodeError interprets a non-REPLY message as either an ERROR (recording
// the wire error code) or a synthesized TIMEOUT (recording ErrTimeout). Any
// other command, or a malformed ERROR body, is reported as an error, which
// the caller treats as protocol-fatal — this mirrors pa_context_handle_error
// in the original source exactly.
func (c *Context) decodeError(msg proto.Message) error {
	switch msg.Command {
	case proto.CommandError:
		p := proto.NewParser(msg.Body)
		code := p.GetUint32()
		if p.Err() != nil {
			return p.Err()
		}
		c.setErrno(ErrorCode(code))
		return nil
	case proto.CommandTimeout:
		c.setErrno(ErrTimeout)
		return nil
	default:
		return fmt.Errorf("pulseaudio: unexpected command %v where ERROR or REPLY was expected", msg.Command)
	}
}

// transition moves the Context to newState, firing the state callback and,
// for a terminal newState, force-terminating every stream and operation
// still outstanding. It is a no-op if the Context is already terminal or
// already in newState, so a terminal state is never left once entered.
func (c *Context) transition(newState State) {
	c.mu.Lock()
	if c.state.Terminal() || c.state == newState {
		c.mu.Unlock()
		return
	}
	c.state = newState
	c.metrics.state.Set(newState.String())

	var streamSnapshot []*stream.Stream
	var opSnapshot []*Operation
	var ps *pstream.Stream
	var conn net.Conn
	var mstat *memblock.Stat

	if newState.Terminal() {
		streamSnapshot = append(streamSnapshot, c.streams...)
		c.streams = nil
		c.playbackStreams = make(map[uint32]*stream.Stream)
		c.recordStreams = make(map[uint32]*stream.Stream)
		c.metrics.streamsLive.Set(0)

		for op := range c.allOps {
			opSnapshot = append(opSnapshot, op)
		}
		c.allOps = make(map[*Operation]struct{})
		c.replyOps = make(map[uint32]*Operation)
		c.metrics.opsPending.Set(0)

		ps, c.ps = c.ps, nil
		c.pd = nil
		conn, c.conn = c.conn, nil
		mstat = c.mstat
	}

	cb := c.stateCB
	c.mu.Unlock()

	if newState.Terminal() {
		target := stream.Failed
		if newState == Terminated {
			target = stream.Terminated
		}
		// Snapshotting the stream and operation sets before iterating tolerates
		// a callback unlinking itself (or another element) as a side effect,
		// the Go-native equivalent of capturing next-pointers before each step
		// over an intrusive list.
		for _, s := range streamSnapshot {
			s.SetState(target)
		}
		for _, op := range opSnapshot {
			op.complete(false, ErrConnectionTerminated)
		}
		if ps != nil {
			// Close waits for the framer's receive loop to exit, and this
			// transition may itself be running on that loop (from a die or
			// packet callback), so the close runs on its own goroutine.
			go ps.Close()
		} else if conn != nil {
			conn.Close()
		}
		if mstat != nil {
			mstat.Unref()
		}
	}

	if cb != nil {
		cb(c)
	}
}

// Connect begins establishing a session against server. An empty server
// falls back to EnvDefaultServer, then DefaultServer. Connect returns nil
// once the transport dial has been initiated asynchronously via the
// Context's Scheduler; dial and handshake failures are reported later
// through the state callback (a transition to Failed) rather than through
// Connect's return value. It panics if called outside Unconnected, which is
// a programmer error, not a runtime condition.
//
// A nil ctx is treated as context.Background.
func (c *Context) Connect(ctx context.Context, server string) error {
	unref := c.refGuard()
	defer unref()

	if c.State() != Unconnected {
		panic("pulseaudio: Connect called outside Unconnected state")
	}

	cookie, err := loadCookie()
	if err != nil {
		c.fail(ErrAuthKey)
		return err
	}
	c.mu.Lock()
	c.cookie = cookie
	c.mu.Unlock()

	addr := resolveServerAddr(server)
	c.transition(Connecting)

	if ctx == nil {
		ctx = context.Background()
	}
	c.Ref()
	c.loop.Go(func() {
		defer c.Unref()
		c.dial(ctx, addr)
	})
	return nil
}

func resolveServerAddr(server string) string {
	if server != "" {
		return server
	}
	if v := os.Getenv(EnvDefaultServer); v != "" {
		return v
	}
	return DefaultServer
}

func (c *Context) dial(ctx context.Context, server string) {
	conn, err := socketclient.Dial(ctx, server)
	if err != nil {
		var invalid *socketclient.ErrInvalidServer
		if errors.As(err, &invalid) {
			c.fail(ErrInvalidServer)
			return
		}
		c.fail(ErrConnectionRefused)
		return
	}
	c.onConnected(conn)
}

// Disconnect tears the Context down unconditionally: it transitions to
// Terminated from whatever state it is currently in, including Unconnected.
// Disconnect is idempotent.
func (c *Context) Disconnect() {
	unref := c.refGuard()
	defer unref()
	c.transition(Terminated)
}

// ExitDaemon asks the daemon to exit. It is fire-and-forget: the command is
// sent with no reply expected, matching the original's handling of
// PA_COMMAND_EXIT as a one-way notification rather than a simple-ack
// command.
func (c *Context) ExitDaemon() error {
	unref := c.refGuard()
	defer unref()

	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return fmt.Errorf("pulseaudio: ExitDaemon called outside Ready state")
	}
	tag := c.nextTagLocked()
	ps := c.ps
	c.mu.Unlock()

	msg := proto.Message{Command: proto.CommandExit, Tag: tag}
	return ps.SendMessage(msg.Encode())
}

// IsPending reports whether the Context has any send in flight on its
// framer, or any reply registration still outstanding on its dispatcher. It
// is always false outside Ready.
func (c *Context) IsPending() bool {
	c.mu.Lock()
	st := c.state
	ps, pd := c.ps, c.pd
	c.mu.Unlock()
	if st != Ready {
		return false
	}
	return ps.IsPending() || pd.IsPending()
}

// AdoptStream registers s as a child of c under the given server-assigned
// channel id, so that inbound memblocks and stream-killed notifications for
// that channel are routed to it, and so that s is force-terminated on c's
// next terminal transition. It is the minimal stand-in for the full
// create-stream request/reply exchange, which spec.md leaves unspecified
// beyond "the core force-terminates its children."
func (c *Context) AdoptStream(s *stream.Stream, channel uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.ChannelID = channel
	c.streams = append(c.streams, s)
	c.metrics.streamsLive.Add(1)
	if s.Direction == stream.Playback {
		c.playbackStreams[channel] = s
	} else {
		c.recordStreams[channel] = s
	}
}
