// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import "fmt"

// ErrorCode enumerates the error kinds a Context can report, matching
// spec.md §6 exactly.
type ErrorCode uint32

const (
	ErrOk ErrorCode = iota
	ErrAuthKey
	ErrConnectionRefused
	ErrConnectionTerminated
	ErrInvalidServer
	ErrProtocol
	ErrTimeout
)

func (e ErrorCode) String() string {
	switch e {
	case ErrOk:
		return "ok"
	case ErrAuthKey:
		return "auth key"
	case ErrConnectionRefused:
		return "connection refused"
	case ErrConnectionTerminated:
		return "connection terminated"
	case ErrInvalidServer:
		return "invalid server"
	case ErrProtocol:
		return "protocol error"
	case ErrTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("error code %d", uint32(e))
	}
}

// Error implements the error interface so an ErrorCode can be returned or
// wrapped directly.
func (e ErrorCode) Error() string { return e.String() }
