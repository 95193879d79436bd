//go:build unix

package http1

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isPeerReset reports whether err carries an errno meaning the peer tore
// down the connection. EPIPE shows up when the peer reset between our
// write syscalls; both collapse to ErrConnectionResetByPeer.
func isPeerReset(err error) bool {
	return errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE)
}

func isTimeoutErrno(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}
