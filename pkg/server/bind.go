package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultInitialPort = 10000
	maxPort            = 65535
)

// Binder opens a listening socket on the given port.
type Binder interface {
	Bind(ctx context.Context, port int) (net.Listener, error)
}

// TCPBinder binds on all interfaces.
type TCPBinder struct {
	Host string
}

func (this TCPBinder) Bind(ctx context.Context, port int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(this.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, &BindError{Port: port, Kind: ClassifyBindError(err), Err: err}
	}
	return ln, nil
}

type BindErrorKind uint8

const (
	BindErrorOther = BindErrorKind(iota)
	BindErrorInUse
	BindErrorPermission
)

func (this BindErrorKind) String() string {
	switch this {
	case BindErrorInUse:
		return "inUse"
	case BindErrorPermission:
		return "permission"
	default:
		return "other"
	}
}

type BindError struct {
	Port int
	Kind BindErrorKind
	Err  error
}

func (this *BindError) Error() string {
	return fmt.Sprintf("cannot bind port %d (%v): %v", this.Port, this.Kind, this.Err)
}

func (this *BindError) Unwrap() error {
	return this.Err
}

func nextPort(port, initial int) int {
	if port >= maxPort {
		return initial
	}
	return port + 1
}
