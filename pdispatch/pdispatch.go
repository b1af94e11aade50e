// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package pdispatch implements the reply-dispatch registry the core
// consumes: a tag-keyed table of pending callbacks with per-entry timeouts,
// plus a fixed table of handlers for server-initiated (untagged-call)
// commands.
package pdispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/nongcunshaoye/pulseaudio/proto"
)

// ReplyFunc handles a reply to a previously registered tag. It receives the
// decoded message; command is CommandReply, CommandError, or the locally
// synthesized CommandTimeout.
type ReplyFunc func(msg proto.Message)

// EventFunc handles a server-initiated command with no corresponding
// pending tag.
type EventFunc func(msg proto.Message) error

// DrainCallback is invoked once the pending-reply set transitions from
// non-empty to empty. It fires at most once per registration.
type DrainCallback func()

// Dispatcher matches incoming tagged messages to pending reply callbacks by
// tag, or failing that, to a fixed table of event handlers keyed by command.
// A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	table map[proto.Command]EventFunc

	mu        sync.Mutex
	pending   map[uint32]*entry
	drainOnce DrainCallback
}

type entry struct {
	cb    ReplyFunc
	timer *time.Timer
}

// New creates a Dispatcher over the given immutable server-event command
// table. The table is consulted for any message whose tag has no pending
// registration.
func New(table map[proto.Command]EventFunc) *Dispatcher {
	return &Dispatcher{table: table, pending: make(map[uint32]*entry)}
}

// RegisterReply registers cb to be invoked when a reply tagged with tag
// arrives, or after timeout elapses with a synthesized CommandTimeout
// message, whichever happens first.
func (d *Dispatcher) RegisterReply(tag uint32, timeout time.Duration, cb ReplyFunc) {
	e := &entry{cb: cb}
	e.timer = time.AfterFunc(timeout, func() { d.expire(tag) })

	d.mu.Lock()
	d.pending[tag] = e
	d.mu.Unlock()
}

func (d *Dispatcher) expire(tag uint32) {
	d.mu.Lock()
	e, ok := d.pending[tag]
	if ok {
		delete(d.pending, tag)
	}
	drain := d.checkDrainLocked()
	d.mu.Unlock()

	if drain != nil {
		drain()
	}
	if ok {
		e.cb(proto.Message{Command: proto.CommandTimeout, Tag: tag})
	}
}

// Run dispatches one decoded message: by tag to a pending reply, or by
// command to the event table. It reports an error for a command with no
// pending tag and no event-table entry; such an error is protocol fatal for
// the caller (the Context).
func (d *Dispatcher) Run(msg proto.Message) error {
	d.mu.Lock()
	e, ok := d.pending[msg.Tag]
	if ok {
		delete(d.pending, msg.Tag)
		e.timer.Stop()
	}
	drain := d.checkDrainLocked()
	d.mu.Unlock()

	if drain != nil {
		drain()
	}

	if ok {
		e.cb(msg)
		return nil
	}

	handler, ok := d.table[msg.Command]
	if !ok {
		return fmt.Errorf("pdispatch: unrecognized command %v for tag %d", msg.Command, msg.Tag)
	}
	return handler(msg)
}

// Cancel removes the pending registration for tag, if any, and reports
// whether one was found. It does not invoke the callback; the caller is
// responsible for synthesizing a terminal reply if needed.
func (d *Dispatcher) Cancel(tag uint32) bool {
	d.mu.Lock()
	e, ok := d.pending[tag]
	if ok {
		e.timer.Stop()
		delete(d.pending, tag)
	}
	drain := d.checkDrainLocked()
	d.mu.Unlock()

	if drain != nil {
		drain()
	}
	return ok
}

// Pending returns the tags with a registration still outstanding, in no
// particular order.
func (d *Dispatcher) Pending() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	tags := make([]uint32, 0, len(d.pending))
	for tag := range d.pending {
		tags = append(tags, tag)
	}
	return tags
}

// IsPending reports whether any reply registration is outstanding.
func (d *Dispatcher) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) != 0
}

// SetDrainCallback registers cb to fire the next time the pending set
// becomes empty. Passing nil clears any previously registered callback
// without firing it.
func (d *Dispatcher) SetDrainCallback(cb DrainCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drainOnce = cb
}

// checkDrainLocked reports and clears the drain callback if the pending set
// just became empty. Must be called with d.mu held; the caller must invoke
// the returned callback (if non-nil) only after releasing mu.
func (d *Dispatcher) checkDrainLocked() DrainCallback {
	if len(d.pending) != 0 || d.drainOnce == nil {
		return nil
	}
	cb := d.drainOnce
	d.drainOnce = nil
	return cb
}
