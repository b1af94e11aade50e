// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import (
	"github.com/nongcunshaoye/pulseaudio/pdispatch"
	"github.com/nongcunshaoye/pulseaudio/proto"
	"github.com/nongcunshaoye/pulseaudio/stream"
)

// serverEventTable builds the fixed command table pdispatch consults for any
// tagged message whose tag has no pending reply registration: the set of
// server-initiated, untagged-in-spirit notifications a Ready Context must
// react to.
func (c *Context) serverEventTable() map[proto.Command]pdispatch.EventFunc {
	return map[proto.Command]pdispatch.EventFunc{
		proto.CommandRequest:              c.handleRequest,
		proto.CommandPlaybackStreamKilled: c.handleStreamKilled(stream.Playback),
		proto.CommandRecordStreamKilled:   c.handleStreamKilled(stream.Record),
		proto.CommandSubscribeEvent:       c.handleSubscribeEvent,
	}
}

// handleRequest answers a REQUEST: the daemon asking for more playback data
// on one of the core's streams. The core has no rendering loop of its own
// (spec.md §1 Non-goals); it only forwards the ask to whatever callback the
// caller installed via SetRequestCallback.
func (c *Context) handleRequest(msg proto.Message) error {
	p := proto.NewParser(msg.Body)
	channel := p.GetUint32()
	length := p.GetUint32()
	if err := p.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	s := c.playbackStreams[channel]
	cb := c.requestCB
	c.mu.Unlock()

	if s != nil && cb != nil {
		cb(s, length)
	}
	return nil
}

// handleStreamKilled returns an EventFunc that unlinks and terminates the
// stream named by the message's channel id, for the given direction.
func (c *Context) handleStreamKilled(dir stream.Direction) pdispatch.EventFunc {
	return func(msg proto.Message) error {
		p := proto.NewParser(msg.Body)
		channel := p.GetUint32()
		if err := p.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		var s *stream.Stream
		if dir == stream.Playback {
			s = c.playbackStreams[channel]
			delete(c.playbackStreams, channel)
		} else {
			s = c.recordStreams[channel]
			delete(c.recordStreams, channel)
		}
		if s != nil {
			c.streams = removeStream(c.streams, s)
			c.metrics.streamsLive.Add(-1)
		}
		c.mu.Unlock()

		if s != nil {
			s.SetState(stream.Terminated)
		}
		return nil
	}
}

func removeStream(streams []*stream.Stream, target *stream.Stream) []*stream.Stream {
	out := streams[:0]
	for _, s := range streams {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// handleSubscribeEvent forwards a SUBSCRIBE_EVENT notification to whatever
// callback the caller installed via SetSubscribeCallback.
func (c *Context) handleSubscribeEvent(msg proto.Message) error {
	p := proto.NewParser(msg.Body)
	event := p.GetUint32()
	index := p.GetUint32()
	if err := p.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	cb := c.subscribeCB
	c.mu.Unlock()

	if cb != nil {
		cb(c, event, index)
	}
	return nil
}
