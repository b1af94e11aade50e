// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio_test

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/nongcunshaoye/pulseaudio"
	"github.com/nongcunshaoye/pulseaudio/proto"
	"github.com/nongcunshaoye/pulseaudio/pulsetest"
	"github.com/nongcunshaoye/pulseaudio/stream"
)

// newPair wires a Context to an in-memory pulsetest.Server and kicks off the
// handshake, returning both plus a channel that receives every state the
// Context passes through.
func newPair(t *testing.T, cookie [pulseaudio.CookieSize]byte) (*pulseaudio.Context, *pulsetest.Server, <-chan pulseaudio.State) {
	t.Helper()
	ch, srv := pulsetest.NewPair()
	srv.AcceptAnyCookie()

	states := make(chan pulseaudio.State, 16)
	c := pulseaudio.New(nil, "test-client")
	c.SetStateCallback(func(c *pulseaudio.Context) { states <- c.State() })

	if err := c.ConnectViaChannel(ch, cookie); err != nil {
		t.Fatalf("ConnectViaChannel: %v", err)
	}
	return c, srv, states
}

func expectState(t *testing.T, states <-chan pulseaudio.State, want pulseaudio.State) {
	t.Helper()
	select {
	case got := <-states:
		if got != want {
			t.Fatalf("state: got %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %v", want)
	}
}

func TestHandshakeHappyPath(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, _, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	if got := c.State(); got != pulseaudio.Ready {
		t.Errorf("final state: got %v, want %v", got, pulseaudio.Ready)
	}
}

func TestHandshakeBadCookie(t *testing.T) {
	defer leaktest.Check(t)()

	ch, srv := pulsetest.NewPair()
	srv.SetAuthPolicy(func([]byte) bool { return false })

	states := make(chan pulseaudio.State, 16)
	c := pulseaudio.New(nil, "test-client")
	c.SetStateCallback(func(c *pulseaudio.Context) { states <- c.State() })

	var cookie [pulseaudio.CookieSize]byte
	if err := c.ConnectViaChannel(ch, cookie); err != nil {
		t.Fatalf("ConnectViaChannel: %v", err)
	}

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.Failed)

	if got, want := c.Errno(), pulseaudio.ErrAuthKey; got != want {
		t.Errorf("errno: got %v, want %v", got, want)
	}
}

func TestTransportDeathWhileReady(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, srv, states := newPair(t, cookie)

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	srv.Close()

	expectState(t, states, pulseaudio.Failed)
	if got, want := c.Errno(), pulseaudio.ErrConnectionTerminated; got != want {
		t.Errorf("errno: got %v, want %v", got, want)
	}
}

func TestExitDaemonIsFireAndForget(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, srv, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	if err := c.ExitDaemon(); err != nil {
		t.Fatalf("ExitDaemon: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range srv.Received() {
			if msg.Command == proto.CommandExit {
				return // saw it; no reply was required or sent
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server never saw EXIT")
}

func TestMemblockToUnknownChannelIsDropped(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, srv, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	if err := srv.PushMemblock(999, 0, []byte("stray")); err != nil {
		t.Fatalf("PushMemblock: %v", err)
	}

	// Give the recv loop a moment to process it; the Context should still be
	// Ready afterward since an unmatched channel id is not a protocol error.
	time.Sleep(20 * time.Millisecond)
	if got := c.State(); got != pulseaudio.Ready {
		t.Errorf("state after stray memblock: got %v, want %v", got, pulseaudio.Ready)
	}
}

func TestMemblockRoutedToRecordStream(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, srv, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	s := stream.New(stream.Record)
	delivered := make(chan []byte, 1)
	s.SetReadCallback(func(data []byte) { delivered <- append([]byte(nil), data...) })
	c.AdoptStream(s, 42)

	if err := srv.PushMemblock(42, 0, []byte("pcm data")); err != nil {
		t.Fatalf("PushMemblock: %v", err)
	}

	select {
	case got := <-delivered:
		if string(got) != "pcm data" {
			t.Errorf("delivered: got %q, want %q", got, "pcm data")
		}
	case <-time.After(time.Second):
		t.Fatal("record stream never received its memblock")
	}
}

func TestSendSimpleCommandSuccess(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, srv, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	// The pulsetest.Server only auto-answers AUTH/SET_NAME, so the next
	// command sent needs a response driven manually here.
	result := make(chan bool, 1)
	_, err := c.SendSimpleCommand(proto.CommandSubscribeEvent, nil, func(success bool) {
		result <- success
	})
	if err != nil {
		t.Fatalf("SendSimpleCommand: %v", err)
	}

	// Find the tag the client used and answer it.
	deadline := time.Now().Add(time.Second)
	var tag uint32
	var found bool
	for time.Now().Before(deadline) && !found {
		for _, msg := range srv.Received() {
			if msg.Command == proto.CommandSubscribeEvent {
				tag, found = msg.Tag, true
				break
			}
		}
		if !found {
			time.Sleep(time.Millisecond)
		}
	}
	if !found {
		t.Fatal("server never saw the command")
	}
	if err := srv.Reply(tag); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	select {
	case ok := <-result:
		if !ok {
			t.Error("result: got failure, want success")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for simple-command result")
	}
}

func TestDrainCompletesWhenQuiescent(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, _, states := newPair(t, cookie)
	defer c.Disconnect()

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	if op := c.Drain(nil); op != nil {
		t.Error("Drain on an already-quiescent Context should return nil")
	}
}

func TestDisconnectTerminatesStreams(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, _, states := newPair(t, cookie)

	expectState(t, states, pulseaudio.Connecting)
	expectState(t, states, pulseaudio.Authorizing)
	expectState(t, states, pulseaudio.SettingName)
	expectState(t, states, pulseaudio.Ready)

	play := stream.New(stream.Playback)
	rec := stream.New(stream.Record)
	c.AdoptStream(play, 1)
	c.AdoptStream(rec, 2)

	c.Disconnect()
	expectState(t, states, pulseaudio.Terminated)

	if got := play.State(); got != stream.Terminated {
		t.Errorf("playback stream state: got %v, want %v", got, stream.Terminated)
	}
	if got := rec.State(); got != stream.Terminated {
		t.Errorf("record stream state: got %v, want %v", got, stream.Terminated)
	}

	// Disconnect is idempotent and safe to call again.
	c.Disconnect()
}

func TestConnectTwicePanics(t *testing.T) {
	defer leaktest.Check(t)()

	var cookie [pulseaudio.CookieSize]byte
	c, _, states := newPair(t, cookie)
	defer c.Disconnect()
	expectState(t, states, pulseaudio.Connecting)

	defer func() {
		if recover() == nil {
			t.Error("second ConnectViaChannel should have panicked")
		}
	}()
	ch2, _ := pulsetest.NewPair()
	defer ch2.Close()
	c.ConnectViaChannel(ch2, cookie)
}
