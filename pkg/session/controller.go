package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	log "github.com/echocat/slf4g"

	"github.com/blaubaer/baby-monitor/pkg/discovery"
	"github.com/blaubaer/baby-monitor/pkg/server"
	"github.com/blaubaer/baby-monitor/pkg/stream"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotRunning     = errors.New("session controller not running")
)

// Controller drives one session at a time: Idle -> Advertising ->
// Connected -> Streaming -> Advertising ... -> Idle.
//
// Every status change is funneled through Run which is the only place the
// Status is mutated and OnStatus is called; the worker and the discovery
// callbacks only post events.
type Controller struct {
	Server      *server.Server
	Advertiser  *discovery.Advertiser
	Streamer    *stream.Streamer
	InitialPort int
	Address     string

	OnStatus func(Status)

	token  atomic.Pointer[Token]
	handle *server.Handle
	mutex  sync.Mutex

	status   atomic.Pointer[Status]
	events   chan event
	done     chan struct{}
	initOnce sync.Once
}

type event struct {
	token Token
	force bool
	apply func(*Status)
}

func (this *Controller) init() {
	this.initOnce.Do(func() {
		this.events = make(chan event, 64)
		this.done = make(chan struct{})
		this.status.Store(&Status{State: StateIdle, Address: this.Address})

		if a := this.Advertiser; a != nil {
			a.OnEvent = this.onDiscoveryEvent
		}
	})
}

// Run processes status events until ctx is done. It has to run while the
// session is started, otherwise the worker blocks on posting events. Events
// already queued when ctx is done are still processed.
func (this *Controller) Run(ctx context.Context) {
	this.init()
	defer close(this.done)

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case e := <-this.events:
					this.apply(e)
				default:
					return
				}
			}
		case e := <-this.events:
			this.apply(e)
		}
	}
}

func (this *Controller) apply(e event) {
	if !e.force {
		current := this.token.Load()
		if current == nil || *current != e.token {
			return
		}
	}
	next := *this.status.Load()
	e.apply(&next)
	this.status.Store(&next)
	if v := this.OnStatus; v != nil {
		v(next)
	}
}

func (this *Controller) Status() Status {
	this.init()
	return *this.status.Load()
}

func (this *Controller) State() State {
	return this.Status().State
}

// Start mints a new activation and launches the server loop.
func (this *Controller) Start(ctx context.Context) error {
	this.init()
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.handle != nil {
		return ErrAlreadyStarted
	}
	select {
	case <-this.done:
		return ErrNotRunning
	default:
	}

	token := NewToken()
	this.token.Store(&token)

	log.With("activation", token).
		With("port", this.InitialPort).
		Info("Baby monitor start.")

	this.post(event{token: token, force: true, apply: func(s *Status) {
		*s = Status{
			State:      StateAdvertising,
			Address:    this.Address,
			Activation: token.String(),
		}
	}})

	a := &activation{this, token}
	this.handle = this.Server.Start(ctx, this.InitialPort, a.serve, a)
	return nil
}

// Stop invalidates the activation, closes all sockets of it and withdraws
// any advertisement. It is a no-op if not started.
func (this *Controller) Stop() {
	this.init()
	this.mutex.Lock()
	defer this.mutex.Unlock()

	h := this.handle
	if h == nil {
		return
	}
	token := this.token.Swap(nil)

	this.Server.Stop(h)
	if a := this.Advertiser; a != nil {
		a.Unregister()
	}
	this.handle = nil

	if token != nil {
		log.With("activation", *token).
			Info("Baby monitor stop.")
	}
	this.post(event{force: true, apply: func(s *Status) {
		*s = Status{
			State:   StateIdle,
			Address: this.Address,
		}
	}})
}

func (this *Controller) post(e event) {
	select {
	case this.events <- e:
	case <-this.done:
	}
}

func (this *Controller) postCurrent(apply func(*Status)) {
	if token := this.token.Load(); token != nil {
		this.post(event{token: *token, apply: apply})
	}
}

func (this *Controller) onDiscoveryEvent(e discovery.Event) {
	switch e.Kind {
	case discovery.EventRegistered:
		this.postCurrent(func(s *Status) {
			s.ServiceName = e.Service.Name
			s.Port = e.Service.Port
		})
	case discovery.EventUnregistered:
		this.postCurrent(func(s *Status) {
			s.ServiceName = ""
		})
	case discovery.EventRegistrationFailed:
		log.WithError(e.Err).
			With("service", e.Service).
			Warn("Parent devices will not be able to discover this device until the next attempt.")
	}
}

// activation binds the server callbacks to the token they were started
// with; events of stale activations are dropped by Run.
type activation struct {
	owner *Controller
	token Token
}

func (this *activation) post(apply func(*Status)) {
	this.owner.post(event{token: this.token, apply: apply})
}

func (this *activation) serve(ctx context.Context, conn net.Conn) error {
	return this.owner.Streamer.Serve(ctx, conn, func() {
		this.post(func(s *Status) {
			s.State = StateStreaming
		})
	})
}

func (this *activation) OnBindFailed(int, error) {}

func (this *activation) OnListening(port int) {
	this.post(func(s *Status) {
		s.State = StateAdvertising
		s.Port = port
	})
}

func (this *activation) OnConnected(int, net.Addr) {
	this.post(func(s *Status) {
		s.State = StateConnected
	})
}

func (this *activation) OnDisconnected(int, error) {
	this.post(func(s *Status) {
		s.State = StateAdvertising
	})
}
