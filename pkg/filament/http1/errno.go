package http1

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// The single projection from the OS error space into the package taxonomy.
// errno recognition is platform-dependent and lives in errno_unix.go /
// errno_other.go; everything else about the mapping is here.

// mapReadError converts an error returned by the underlying stream's Read
// into the package taxonomy. A nil error maps to nil.
func mapReadError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrEndOfStream
	case isTimeout(err):
		return ErrConnectionTimedOut
	case isPeerReset(err):
		return ErrConnectionResetByPeer
	case errors.Is(err, net.ErrClosed):
		return ErrConnectionResetByPeer
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedReadFailure, err)
	}
}

// mapWriteError converts an error returned by the underlying stream's Write
// into the package taxonomy.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isTimeout(err):
		return ErrConnectionTimedOut
	case isPeerReset(err), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return ErrConnectionResetByPeer
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedWriteFailure, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return isTimeoutErrno(err)
}
