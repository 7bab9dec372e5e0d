package frames

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFrame = errors.New("frames: unknown frame")
	ErrDisconnected = errors.New("frames: frames are not connected")
	ErrStale        = errors.New("frames: transform is older than the cache window")
	ErrTimeout      = errors.New("frames: timed out waiting for transform")
	ErrInvalid      = errors.New("frames: invalid transform")
)

type Reason int

const (
	ReasonUnknownFrame Reason = iota
	ReasonDisconnected
	ReasonStale
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknownFrame:
		return "unknown frame"
	case ReasonDisconnected:
		return "disconnected"
	case ReasonStale:
		return "stale"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// LookupError is the failure half of a lookup result.
type LookupError struct {
	Reason Reason
	Target string
	Source string
	// Frame is the frame that caused the failure, when known.
	Frame string
	// Last is the failure seen before a timeout expired.
	Last error
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("frames: lookup %s -> %s: %s", e.Target, e.Source, e.Reason)
	if e.Frame != "" {
		msg += fmt.Sprintf(" (%s)", e.Frame)
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error {
	switch e.Reason {
	case ReasonUnknownFrame:
		return ErrUnknownFrame
	case ReasonDisconnected:
		return ErrDisconnected
	case ReasonStale:
		return ErrStale
	default:
		return ErrTimeout
	}
}
