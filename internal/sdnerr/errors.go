// Package sdnerr provides the structured error kinds used across the
// control plane, per the error handling design: each kind names a
// specific drop/log decision rather than an ad hoc string.
package sdnerr

import (
	"errors"
	"fmt"
)

// Code identifies one of the control plane's error kinds.
type Code int

const (
	// MalformedPacket marks a PacketIn whose Ethernet frame could not be parsed.
	MalformedPacket Code = iota + 1
	// MalformedAnnouncement marks an announcement datagram of the wrong length or type.
	MalformedAnnouncement
	// UnknownHost marks a route query whose endpoint MAC is not a known host or switch.
	UnknownHost
	// UnknownRank marks an MPI rank with no resolvable host MAC.
	UnknownRank
	// SubscriberDisconnected marks an RPC subscriber evicted after a transport error.
	SubscriberDisconnected
	// SubscriberInvalidReply marks a malformed reply from a retained RPC subscriber.
	SubscriberInvalidReply
	// SwitchDisconnected marks a switch session that dropped off the fabric.
	SwitchDisconnected
)

func (c Code) String() string {
	switch c {
	case MalformedPacket:
		return "MALFORMED_PACKET"
	case MalformedAnnouncement:
		return "MALFORMED_ANNOUNCEMENT"
	case UnknownHost:
		return "UNKNOWN_HOST"
	case UnknownRank:
		return "UNKNOWN_RANK"
	case SubscriberDisconnected:
		return "SUBSCRIBER_DISCONNECTED"
	case SubscriberInvalidReply:
		return "SUBSCRIBER_INVALID_REPLY"
	case SwitchDisconnected:
		return "SWITCH_DISCONNECTED"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR_%d", int(c))
	}
}

// Error is a structured error carrying one of the Code kinds.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// GetCode extracts the Code from err, or 0 if err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}
