// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

// Package proto defines the tagged-message wire format shared by the core
// and the native audio daemon it talks to: command identifiers and the
// tagstruct encoding used for their payloads.
package proto

import "fmt"

// Command identifies the structural type of a tagged message. The values
// mirror the native protocol's opcode numbers; this module only encodes or
// decodes the subset the core actually sends or handles.
type Command uint32

const (
	CommandError   Command = 0
	CommandTimeout Command = 1 // synthesized locally by pdispatch, never sent on the wire
	CommandReply   Command = 2

	CommandCreatePlaybackStream Command = 3
	CommandDeletePlaybackStream Command = 4
	CommandCreateRecordStream   Command = 5
	CommandDeleteRecordStream   Command = 6

	CommandExit          Command = 7
	CommandAuth          Command = 8
	CommandSetClientName Command = 9

	CommandRequest              Command = 61 // server -> client: flow control
	CommandOverflow             Command = 62 // server -> client
	CommandUnderflow            Command = 63 // server -> client
	CommandPlaybackStreamKilled Command = 64 // server -> client
	CommandRecordStreamKilled   Command = 65 // server -> client
	CommandSubscribeEvent       Command = 66 // server -> client
)

func (c Command) String() string {
	switch c {
	case CommandError:
		return "ERROR"
	case CommandTimeout:
		return "TIMEOUT"
	case CommandReply:
		return "REPLY"
	case CommandCreatePlaybackStream:
		return "CREATE_PLAYBACK_STREAM"
	case CommandDeletePlaybackStream:
		return "DELETE_PLAYBACK_STREAM"
	case CommandCreateRecordStream:
		return "CREATE_RECORD_STREAM"
	case CommandDeleteRecordStream:
		return "DELETE_RECORD_STREAM"
	case CommandExit:
		return "EXIT"
	case CommandAuth:
		return "AUTH"
	case CommandSetClientName:
		return "SET_NAME"
	case CommandRequest:
		return "REQUEST"
	case CommandOverflow:
		return "OVERFLOW"
	case CommandUnderflow:
		return "UNDERFLOW"
	case CommandPlaybackStreamKilled:
		return "PLAYBACK_STREAM_KILLED"
	case CommandRecordStreamKilled:
		return "RECORD_STREAM_KILLED"
	case CommandSubscribeEvent:
		return "SUBSCRIBE_EVENT"
	default:
		return fmt.Sprintf("COMMAND:%d", uint32(c))
	}
}
