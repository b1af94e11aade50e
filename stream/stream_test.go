package stream

import "testing"

func TestSetState(t *testing.T) {
	var got []State
	s := New(Record)
	s.SetStateCallback(func(s *Stream) { got = append(got, s.State()) })

	s.SetState(Ready)
	s.SetState(Ready) // no-op, state unchanged
	s.SetState(Terminated)

	want := []State{Ready, Terminated}
	if len(got) != len(want) {
		t.Fatalf("SetState calls = %v, want %v", got, want)
	}
	for i, st := range want {
		if got[i] != st {
			t.Errorf("transition %d = %v, want %v", i, got[i], st)
		}
	}
}

func TestDeliverPlaybackIgnored(t *testing.T) {
	s := New(Playback)
	var called bool
	s.SetReadCallback(func(data []byte) { called = true })
	s.Deliver([]byte("hello"))
	if called {
		t.Errorf("Deliver invoked read callback on a playback stream")
	}
}

func TestDeliverRecord(t *testing.T) {
	s := New(Record)
	var got []byte
	s.SetReadCallback(func(data []byte) { got = append([]byte(nil), data...) })
	s.Deliver([]byte("hello"))
	if string(got) != "hello" {
		t.Errorf("Deliver: got %q, want %q", got, "hello")
	}
}
