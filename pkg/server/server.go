package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/common"
)

const DefaultRetryDelay = 100 * time.Millisecond

// Advertiser makes the listening port discoverable. Unregister has to be
// idempotent and must only return once the service is withdrawn.
type Advertiser interface {
	Register(port int)
	Unregister()
}

// Handler serves one accepted connection until it is done with it.
type Handler func(ctx context.Context, conn net.Conn) error

// Observer is informed about the progress of the loop. All methods are
// called from the loop's goroutine.
type Observer interface {
	OnBindFailed(port int, err error)
	OnListening(port int)
	OnConnected(port int, remote net.Addr)
	OnDisconnected(port int, err error)
}

// Server accepts exactly one connection at a time and hands it over to a
// Handler. While a connection is served nothing is advertised and nobody
// else is accepted. Once the Handler returns, the same port is bound and
// advertised again.
type Server struct {
	Binder     Binder
	Advertiser Advertiser

	// RetryDelay is the pause before the next bind attempt. 0 retries
	// immediately.
	RetryDelay time.Duration

	generation atomic.Uint64

	// Guards the generation check together with advertising, so a stale
	// loop never touches the advertisement of the current one.
	mutex sync.Mutex
}

// Handle identifies one started loop and owns its sockets.
type Handle struct {
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	listener atomic.Pointer[net.Listener]
	conn     atomic.Pointer[net.Conn]
}

// Done is closed once the loop has exited and released everything.
func (this *Handle) Done() <-chan struct{} {
	return this.done
}

// Start spawns the loop, bound to a fresh generation. Any previously
// started loop becomes stale and exits at its next check; it still has to
// be stopped to release its sockets right away.
func (this *Server) Start(ctx context.Context, initialPort int, handler Handler, observer Observer) *Handle {
	if observer == nil {
		observer = noopObserver{}
	}
	ctx, cancel := context.WithCancel(ctx)
	this.mutex.Lock()
	h := &Handle{
		generation: this.generation.Add(1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	this.mutex.Unlock()
	go this.run(ctx, h, initialPort, handler, observer)
	return h
}

// Stop invalidates the generation of h, closes the listening and connected
// socket of h to unblock its loop and waits until it has exited. The
// advertisement is only withdrawn if h was still the current generation.
func (this *Server) Stop(h *Handle) {
	if h == nil {
		return
	}
	this.mutex.Lock()
	wasCurrent := this.generation.CompareAndSwap(h.generation, h.generation+1)
	this.mutex.Unlock()
	h.cancel()

	if ln := h.listener.Load(); ln != nil {
		if err := (*ln).Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.WithError(err).
				Warn("Failed to close server socket.")
		}
	}
	if conn := h.conn.Load(); conn != nil {
		if err := (*conn).Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.WithError(err).
				Warn("Failed to close connection.")
		}
	}

	<-h.done

	if wasCurrent {
		this.Advertiser.Unregister()
	}
}

func (this *Server) isCurrent(h *Handle) bool {
	return this.generation.Load() == h.generation
}

func (this *Server) advertise(h *Handle, port int) bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if !this.isCurrent(h) {
		return false
	}
	this.Advertiser.Register(port)
	return true
}

func (this *Server) withdraw(h *Handle) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	if this.isCurrent(h) {
		this.Advertiser.Unregister()
	}
}

func (this *Server) run(ctx context.Context, h *Handle, initialPort int, handler Handler, observer Observer) {
	defer close(h.done)
	defer this.withdraw(h)

	port := initialPort
	for this.isCurrent(h) {
		ln, err := this.Binder.Bind(ctx, port)
		if err != nil {
			failed := port
			port = nextPort(port, initialPort)
			l := log.WithError(err).
				With("port", failed).
				With("nextPort", port)
			if bErr, ok := common.AsError[*BindError](err); ok {
				l = l.With("reason", bErr.Kind)
			}
			l.Warn("Failed to open server socket. Trying next port.")
			observer.OnBindFailed(failed, err)
			if !this.pause(ctx) {
				return
			}
			continue
		}

		if port == 0 {
			if addr, ok := ln.Addr().(*net.TCPAddr); ok {
				port = addr.Port
			}
		}

		// After a parent was served the same port is bound again right away.
		if !this.serve(ctx, h, ln, port, handler, observer) && !this.pause(ctx) {
			return
		}
	}
}

// serve advertises port, accepts one connection on ln and hands it over to
// handler. ln is always closed on return. It reports whether a connection
// was served.
func (this *Server) serve(ctx context.Context, h *Handle, ln net.Listener, port int, handler Handler, observer Observer) bool {
	lnp := &ln
	h.listener.Store(lnp)
	defer func() {
		h.listener.CompareAndSwap(lnp, nil)
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.WithError(err).
				With("port", port).
				Warn("Failed to close server socket.")
		}
	}()

	if !this.isCurrent(h) {
		return false
	}
	log.With("port", port).
		Info("Listening for parent device.")
	observer.OnListening(port)

	if !this.advertise(h, port) {
		return false
	}

	conn, err := ln.Accept()

	// No other parent should be able to find us anymore.
	this.withdraw(h)

	if err != nil {
		if this.isCurrent(h) {
			log.WithError(err).
				With("port", port).
				Warn("Failed to accept connection. Reopening server socket.")
		}
		return false
	}

	// Nobody else is accepted while this parent is served.
	if cErr := ln.Close(); cErr != nil && !errors.Is(cErr, net.ErrClosed) {
		log.WithError(cErr).
			With("port", port).
			Debug("Failed to close server socket.")
	}

	log.With("port", port).
		With("remote", conn.RemoteAddr()).
		Info("Connection from parent device received.")
	this.handle(ctx, h, conn, port, handler, observer)
	return true
}

func (this *Server) handle(ctx context.Context, h *Handle, conn net.Conn, port int, handler Handler, observer Observer) {
	cp := &conn
	h.conn.Store(cp)
	defer h.conn.CompareAndSwap(cp, nil)

	if !this.isCurrent(h) {
		_ = conn.Close()
		return
	}

	observer.OnConnected(port, conn.RemoteAddr())
	err := handler(ctx, conn)
	if cErr := conn.Close(); cErr != nil && !errors.Is(cErr, net.ErrClosed) {
		log.WithError(cErr).
			Debug("Failed to close connection.")
	}

	if err != nil && !common.IsConnectionGone(err) && this.isCurrent(h) {
		log.WithError(err).
			With("remote", conn.RemoteAddr()).
			Warn("Connection failed.")
	} else {
		log.With("remote", conn.RemoteAddr()).
			Info("Parent device disconnected.")
	}
	observer.OnDisconnected(port, err)
}

func (this *Server) pause(ctx context.Context) bool {
	if this.RetryDelay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(this.RetryDelay):
		return true
	}
}

type noopObserver struct{}

func (noopObserver) OnBindFailed(int, error) {}
func (noopObserver) OnListening(int) {}
func (noopObserver) OnConnected(int, net.Addr) {}
func (noopObserver) OnDisconnected(int, error) {}
