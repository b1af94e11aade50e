// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package memblock implements the shared memory-block accounting registry
// the core consumes: a reference-counted usage counter. A Context creates one
// and exposes it through Context.MemblockStat; neither the pstream nor the
// child streams hold a reference to it.
package memblock

import (
	"expvar"
	"sync/atomic"
)

// Stat tracks outstanding memory-block allocations and bytes. It is safe
// for concurrent use, and is reference-counted the way pa_memblock_stat is
// in the original source: callers that hand a Stat to a collaborator should
// Ref it on handoff and Unref it on teardown so the Stat outlives the
// Context whenever a block it accounts for is still reachable.
type Stat struct {
	ref atomic.Int64

	blocks atomic.Int64
	bytes  atomic.Int64

	allocated   expvar.Int
	accumulated expvar.Int
}

// New creates a Stat with an initial reference count of 1.
func New() *Stat {
	s := &Stat{}
	s.ref.Store(1)
	return s
}

// Ref increments the reference count and returns s for chaining.
func (s *Stat) Ref() *Stat {
	s.ref.Add(1)
	return s
}

// Unref decrements the reference count. The caller must not use s again
// after the count reaches zero.
func (s *Stat) Unref() {
	s.ref.Add(-1)
}

// Alloc records the allocation of a block of the given size.
func (s *Stat) Alloc(size int) {
	s.blocks.Add(1)
	s.bytes.Add(int64(size))
	s.allocated.Add(1)
	s.accumulated.Add(int64(size))
}

// Free records the release of a block of the given size.
func (s *Stat) Free(size int) {
	s.blocks.Add(-1)
	s.bytes.Add(-int64(size))
	s.allocated.Add(-1)
}

// Blocks reports the number of currently live blocks.
func (s *Stat) Blocks() int64 { return s.blocks.Load() }

// Bytes reports the total size of currently live blocks.
func (s *Stat) Bytes() int64 { return s.bytes.Load() }

// Publish exports s's counters under the given expvar.Map, keyed
// "<prefix>_blocks_allocated" and "<prefix>_bytes_accumulated". It is safe to call more than
// once; later calls overwrite the earlier published values.
func (s *Stat) Publish(m *expvar.Map, prefix string) {
	m.Set(prefix+"_blocks_allocated", &s.allocated)
	m.Set(prefix+"_bytes_accumulated", &s.accumulated)
}
