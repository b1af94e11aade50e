// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import (
	"fmt"
	"sync"

	"github.com/nongcunshaoye/pulseaudio/proto"
)

// An Operation tracks one asynchronous request submitted against a Context:
// a simple-ack command, or a drain. It completes exactly once, either with
// the server's own answer or because the owning Context left Ready before
// an answer arrived.
type Operation struct {
	ctx *Context

	mu   sync.Mutex
	done bool
	cb   func(success bool, err ErrorCode)
}

func newOperation(ctx *Context, cb func(success bool, err ErrorCode)) *Operation {
	return &Operation{ctx: ctx, cb: cb}
}

// Done reports whether the operation has already completed.
func (o *Operation) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Cancel completes the operation as a failure with ErrConnectionTerminated,
// if it has not already completed. It does not itself unregister the
// operation from the Context; callers that cancel directly (as opposed to
// the terminal-transition sweep) should also call Context.removeOperation.
func (o *Operation) Cancel() {
	o.complete(false, ErrConnectionTerminated)
}

func (o *Operation) complete(success bool, err ErrorCode) {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.done = true
	cb := o.cb
	o.mu.Unlock()

	if cb != nil {
		cb(success, err)
	}
}

// addOperation registers op so it is swept on the Context's next terminal
// transition.
func (c *Context) addOperation(op *Operation) {
	c.mu.Lock()
	c.allOps[op] = struct{}{}
	c.mu.Unlock()
	c.metrics.opsPending.Add(1)
}

// removeOperation unregisters op. Safe to call more than once.
func (c *Context) removeOperation(op *Operation) {
	c.mu.Lock()
	_, existed := c.allOps[op]
	delete(c.allOps, op)
	c.mu.Unlock()
	if existed {
		c.metrics.opsPending.Add(-1)
	}
}

// registerReplyOp associates op with tag so a reply carrying that tag can be
// matched back to it, and also tracks it in the all-operations set for the
// terminal sweep.
func (c *Context) registerReplyOp(tag uint32, op *Operation) {
	c.mu.Lock()
	c.replyOps[tag] = op
	c.allOps[op] = struct{}{}
	c.mu.Unlock()
	c.metrics.opsPending.Add(1)
}

func (c *Context) takeReplyOp(tag uint32) (*Operation, bool) {
	c.mu.Lock()
	op, ok := c.replyOps[tag]
	if ok {
		delete(c.replyOps, tag)
	}
	c.mu.Unlock()
	return op, ok
}

// SendSimpleCommand submits cmd with a body built by build (which may be
// nil for an empty body), and reports the server's acknowledgement through
// cb: success is true for a plain REPLY, false for an ERROR or a timeout, in
// which case Errno reports the reason. It returns an error only when the
// command could not be submitted at all (the Context is not Ready, or the
// send itself failed).
func (c *Context) SendSimpleCommand(cmd proto.Command, build func(*proto.Builder), cb func(success bool)) (*Operation, error) {
	unref := c.refGuard()
	defer unref()

	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return nil, fmt.Errorf("pulseaudio: SendSimpleCommand called outside Ready state")
	}
	tag := c.nextTagLocked()
	ps := c.ps
	c.mu.Unlock()

	op := newOperation(c, func(success bool, _ ErrorCode) {
		if cb != nil {
			cb(success)
		}
	})
	c.registerReplyOp(tag, op)

	var b proto.Builder
	if build != nil {
		build(&b)
	}
	msg := proto.Message{Command: cmd, Tag: tag, Body: b.Bytes()}
	if err := ps.SendMessage(msg.Encode()); err != nil {
		c.takeReplyOp(tag)
		c.removeOperation(op)
		op.complete(false, ErrConnectionTerminated)
		c.fail(ErrConnectionTerminated)
		return op, err
	}

	c.mu.Lock()
	pd := c.pd
	c.mu.Unlock()
	pd.RegisterReply(tag, defaultReplyTimeout, func(msg proto.Message) {
		c.handleSimpleAckReply(tag, op, msg)
	})
	return op, nil
}

func (c *Context) handleSimpleAckReply(tag uint32, op *Operation, msg proto.Message) {
	unref := c.refGuard()
	defer unref()

	if _, ok := c.takeReplyOp(tag); !ok {
		// Already swept by a terminal transition; nothing left to do.
		return
	}
	defer c.removeOperation(op)

	if msg.Command != proto.CommandReply {
		if err := c.decodeError(msg); err != nil {
			c.fail(ErrProtocol)
			op.complete(false, ErrProtocol)
			return
		}
		if msg.Command == proto.CommandTimeout {
			c.metrics.repliesTimeout.Add(1)
		} else {
			c.metrics.repliesError.Add(1)
		}
		op.complete(false, c.Errno())
		return
	}

	p := proto.NewParser(msg.Body)
	if !p.EOF() {
		c.fail(ErrProtocol)
		op.complete(false, ErrProtocol)
		return
	}
	c.metrics.repliesOK.Add(1)
	op.complete(true, ErrOk)
}
