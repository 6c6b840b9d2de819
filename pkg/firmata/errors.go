package firmata

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a bounded wait expired. The caller may retry.
	ErrTimeout = errors.New("timeout")
	// ErrUninitialized indicates a message refers to board state which
	// has not been bootstrapped yet.
	ErrUninitialized = errors.New("board state uninitialized")
	// ErrNotFound indicates an expected resource is missing.
	ErrNotFound = errors.New("not found")
	// ErrConversion indicates a malformed fixed-shape payload.
	ErrConversion = errors.New("conversion failure")
	// ErrWrongType indicates a command was applied to the wrong pin class.
	ErrWrongType = errors.New("wrong pin type")
	// ErrState indicates a board state invariant was violated.
	ErrState = errors.New("state error")
	// ErrOutOfRange indicates an index outside of the valid range.
	ErrOutOfRange = errors.New("out of range")
	// ErrInvalidUTF8 indicates a malformed text payload.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
	// ErrClosed indicates all producers or consumers of a channel are gone.
	ErrClosed = errors.New("closed")
)

// ParseError reports a malformed frame payload.
type ParseError struct {
	Context string
	Data    []byte
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error %s: [% x]", e.Context, e.Data)
}

// IOError wraps a failure of the underlying transport.
type IOError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the transport error.
func (e *IOError) Unwrap() error {
	return e.Err
}

func parseError(context string, data []byte) error {
	return &ParseError{Context: context, Data: append([]byte(nil), data...)}
}
