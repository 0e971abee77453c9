package transport

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dTS/rpc/serializer"
)

var (
	// ErrConnectionBroken is returned for every read or write failure other than an
	// interrupted system call. The connection must not be used afterwards.
	ErrConnectionBroken = errors.New("transport: connection broken")

	// ErrFrameSize is returned when a peer announces a frame length that is not positive
	// or exceeds the maximum message size. It is a malformed message, but the stream
	// cannot be resynchronized and the connection should be closed.
	ErrFrameSize = fmt.Errorf("%w: frame length out of range", serializer.ErrMalformedMessage)
)

// IOError reports a failed read or write together with the number of bytes that
// were transferred before the failure.
type IOError struct {
	Op   string // "read" or "write"
	Done int    // bytes transferred
	Want int    // bytes requested
	Err  error  // underlying error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s failed after %d of %d bytes: %v", e.Op, e.Done, e.Want, e.Err)
}

// Unwrap makes errors.Is match both ErrConnectionBroken and the underlying error.
func (e *IOError) Unwrap() []error {
	return []error{ErrConnectionBroken, e.Err}
}

// StreamIntact reports whether the connection can still be used after err was returned
// by ReceiveMessage. This is the case for messages that were framed correctly but could
// not be decoded.
func StreamIntact(err error) bool {
	return err == nil || !(errors.Is(err, ErrConnectionBroken) || errors.Is(err, ErrFrameSize))
}
