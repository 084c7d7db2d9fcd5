package stream

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrDisposed is returned by every operation on a closed Adapter.
	ErrDisposed = errors.Base("stream disposed")

	// ErrInvalidRange is returned for out-of-bounds buffer ranges and
	// unknown seek origins.
	ErrInvalidRange = errors.Base("invalid range")

	// ErrTransportFault matches any TransportError.
	ErrTransportFault = errors.Base("transport fault")
)

// TransportError wraps a failure reported by the native stream.
type TransportError struct {
	Err error
	Op  string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("native %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransportFault.
func (*TransportError) Is(target error) bool {
	return target == ErrTransportFault
}

func transportFault(op string, err error) error {
	return errors.WithStack(&TransportError{Op: op, Err: err})
}
