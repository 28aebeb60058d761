package rosserial

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var (
	// ErrInvalidArgument indicates a bad argument to Publish or Subscribe.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyAdvertised indicates a topic name already has an ID.
	ErrAlreadyAdvertised = errors.New("topic already advertised")
	// ErrTopicIDsExhausted indicates no more topic IDs can be allocated.
	ErrTopicIDsExhausted = errors.New("topic IDs exhausted")
	// ErrNoData indicates a read returned nothing, usually a read timeout.
	ErrNoData = errors.New("no data")
)

// FramingError indicates a malformed frame.
type FramingError struct {
	Reason string
	Err    error
}

// Error implements error.
func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing error: %s: %v", e.Reason, e.Err)
	}
	return "framing error: " + e.Reason
}

// Unwrap returns the cause.
func (e *FramingError) Unwrap() error {
	return e.Err
}

// ChecksumField names the checksum which failed.
type ChecksumField string

// Checksum fields.
const (
	ChecksumLength  ChecksumField = "length"
	ChecksumPayload ChecksumField = "payload"
)

// ChecksumError indicates a checksum mismatch.
type ChecksumError struct {
	Field    ChecksumField
	TopicID  uint16
	Expected byte
	Actual   byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s checksum mismatch (topic %d): expect %#02x, got %#02x",
		e.Field, e.TopicID, e.Expected, e.Actual)
}

// UnknownTopicError indicates a valid frame for an ID nobody subscribed.
type UnknownTopicError struct {
	TopicID uint16
}

// Error implements error.
func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("no subscriber for topic %d", e.TopicID)
}

// TransportError wraps an I/O failure on the transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the I/O error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fatal tells whether the transport is gone for good.
func (e *TransportError) Fatal() bool {
	return errors.Is(e.Err, io.EOF) ||
		errors.Is(e.Err, io.ErrClosedPipe) ||
		errors.Is(e.Err, os.ErrClosed) ||
		errors.Is(e.Err, net.ErrClosed)
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
