// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import "github.com/creachadair/taskgroup"

// Scheduler is the Go-shaped stand-in for spec.md's mainloop_api: an opaque
// event loop to which the core attaches I/O sources and continuations,
// without ever blocking the caller. The core only ever asks the scheduler to
// run a function later; it never registers file descriptors or timers
// through this interface directly (those live inside pstream and pdispatch).
type Scheduler interface {
	// Go arranges for fn to run, without blocking the caller.
	Go(fn func())
}

// goScheduler runs each continuation on its own goroutine via taskgroup,
// mirroring how chirp.Peer and its peers package launch background work.
type goScheduler struct{}

func (goScheduler) Go(fn func()) {
	taskgroup.Go(func() error {
		fn()
		return nil
	})
}

// DefaultScheduler returns a Scheduler that runs each continuation on a
// fresh goroutine. It is used by New when no Scheduler is supplied.
func DefaultScheduler() Scheduler { return goScheduler{} }
