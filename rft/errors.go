package rft

import (
	"errors"
	"fmt"
)

// Error represents a transfer error.
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Sequence is the unit being handled when the error occurred, or -1
	Sequence int64

	// Err is the underlying cause, if any
	Err error
}

// ErrorType categorizes transfer errors.
type ErrorType int

const (
	// ErrProtocol indicates a protocol violation by the peer
	ErrProtocol ErrorType = iota

	// ErrChecksum indicates a checksum mismatch
	ErrChecksum

	// ErrTimeout indicates a timeout occurred
	ErrTimeout

	// ErrIO indicates a local I/O or socket error
	ErrIO

	// ErrCancelled indicates the transfer was cancelled
	ErrCancelled

	// ErrInvalidFrame indicates a frame that cannot be built or decoded
	ErrInvalidFrame

	// ErrRetriesExhausted indicates a unit was never acknowledged
	ErrRetriesExhausted

	// ErrIntegrity indicates delivered content disagrees with the trailer
	ErrIntegrity

	// ErrConfig indicates an invalid configuration
	ErrConfig
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("rft %s: %s", e.Type, e.Message)
	if e.Sequence >= 0 {
		msg += fmt.Sprintf(" (seq: %d)", e.Sequence)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (t ErrorType) String() string {
	switch t {
	case ErrProtocol:
		return "protocol error"
	case ErrChecksum:
		return "checksum error"
	case ErrTimeout:
		return "timeout"
	case ErrIO:
		return "I/O error"
	case ErrCancelled:
		return "cancelled"
	case ErrInvalidFrame:
		return "invalid frame"
	case ErrRetriesExhausted:
		return "retries exhausted"
	case ErrIntegrity:
		return "integrity error"
	case ErrConfig:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// NewError creates a new transfer error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:     errType,
		Message:  message,
		Sequence: -1,
	}
}

// NewSequenceError creates a new transfer error tied to a sequence number
func NewSequenceError(errType ErrorType, message string, seq uint32) *Error {
	return &Error{
		Type:     errType,
		Message:  message,
		Sequence: int64(seq),
	}
}

// WrapError creates a new transfer error with an underlying cause
func WrapError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:     errType,
		Message:  message,
		Sequence: -1,
		Err:      err,
	}
}

func hasType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return hasType(err, ErrTimeout)
}

// IsCancelled checks if an error indicates cancellation
func IsCancelled(err error) bool {
	return hasType(err, ErrCancelled)
}

// IsRetriesExhausted checks if the sender gave up on a unit
func IsRetriesExhausted(err error) bool {
	return hasType(err, ErrRetriesExhausted)
}

// IsIntegrity checks if delivered content failed trailer verification
func IsIntegrity(err error) bool {
	return hasType(err, ErrIntegrity)
}

// IsConfig checks if an error was caused by invalid configuration
func IsConfig(err error) bool {
	return hasType(err, ErrConfig)
}

// IsFatal reports whether err aborted a transfer for a reason other than
// cancellation. Transient conditions are handled inside the state machines
// and never returned.
func IsFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return err != nil
	}
	return e.Type != ErrCancelled
}
