package common

import (
	"errors"
	"io"
	"net"
	"syscall"
)

func AsError[T error](err error) (T, bool) {
	var target T
	return target, errors.As(err, &target)
}

// IsConnectionGone reports whether err only says that the other side (or
// we ourselves) already went away.
func IsConnectionGone(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
