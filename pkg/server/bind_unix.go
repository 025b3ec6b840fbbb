//go:build unix

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

func ClassifyBindError(err error) BindErrorKind {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return BindErrorInUse
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return BindErrorPermission
	default:
		return BindErrorOther
	}
}
