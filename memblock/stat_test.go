// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package memblock

import (
	"expvar"
	"testing"
)

func TestAllocFree(t *testing.T) {
	s := New()
	s.Alloc(100)
	s.Alloc(50)
	if got := s.Blocks(); got != 2 {
		t.Errorf("Blocks: got %d, want 2", got)
	}
	if got := s.Bytes(); got != 150 {
		t.Errorf("Bytes: got %d, want 150", got)
	}

	s.Free(50)
	if got := s.Blocks(); got != 1 {
		t.Errorf("Blocks after Free: got %d, want 1", got)
	}
	if got := s.Bytes(); got != 100 {
		t.Errorf("Bytes after Free: got %d, want 100", got)
	}
}

func TestRefUnref(t *testing.T) {
	s := New()
	s.Ref()
	s.Unref()
	s.Unref() // drops to zero; s must not be used again, but this call itself must not panic
}

func TestPublish(t *testing.T) {
	s := New()
	s.Alloc(10)

	m := new(expvar.Map)
	s.Publish(m, "audio")

	if got := m.Get("audio_blocks_allocated").(*expvar.Int).Value(); got != 1 {
		t.Errorf("audio_blocks_allocated: got %d, want 1", got)
	}
	if got := m.Get("audio_bytes_accumulated").(*expvar.Int).Value(); got != 10 {
		t.Errorf("audio_bytes_accumulated: got %d, want 10", got)
	}
}
