package discovery

import (
	"sync"

	log "github.com/echocat/slf4g"
)

// Published is a live advertisement.
type Published interface {
	// Service returns the record as it was actually published which might
	// differ from the requested one.
	Service() Service
	Shutdown()
}

type Registrar interface {
	Register(requested Service) (Published, error)
}

// Advertiser publishes at most one service at a time. Register returns
// immediately; the outcome is delivered through OnEvent which may be called
// from any goroutine.
type Advertiser struct {
	Registrar Registrar
	Name      string
	OnEvent   func(Event)

	current *registration
	mutex   sync.Mutex
}

type registration struct {
	requested Service
	published Published
	cancelled bool
	done      chan struct{}
}

func (this *Advertiser) Register(port int) {
	this.Unregister()

	name := this.Name
	if name == "" {
		name = DefaultServiceName
	}
	reg := &registration{
		requested: Service{
			Name: name,
			Type: ServiceType,
			Port: port,
		},
		done: make(chan struct{}),
	}

	this.mutex.Lock()
	this.current = reg
	this.mutex.Unlock()

	go this.register(reg)
}

func (this *Advertiser) register(reg *registration) {
	defer close(reg.done)

	published, err := this.Registrar.Register(reg.requested)

	this.mutex.Lock()
	if err != nil {
		if this.current == reg {
			this.current = nil
		}
		this.mutex.Unlock()

		log.WithError(err).
			With("service", reg.requested).
			Error("Registration failed.")
		this.emit(Event{Kind: EventRegistrationFailed, Service: reg.requested, Err: err})
		return
	}
	if reg.cancelled {
		this.mutex.Unlock()
		published.Shutdown()
		log.With("service", published.Service()).
			Debug("Registration completed after it was withdrawn; service unregistered again.")
		return
	}
	reg.published = published
	this.mutex.Unlock()

	actual := published.Service()
	log.With("service", actual).
		With("requestedName", reg.requested.Name).
		Info("Service registered.")
	this.emit(Event{Kind: EventRegistered, Service: actual})
}

// Unregister withdraws the current advertisement, if any. It returns only
// after the service is no longer published, even when its registration was
// still in flight.
func (this *Advertiser) Unregister() {
	this.mutex.Lock()
	reg := this.current
	this.current = nil
	if reg != nil {
		reg.cancelled = true
	}
	this.mutex.Unlock()

	if reg == nil {
		return
	}

	<-reg.done

	if published := reg.published; published != nil {
		log.With("service", published.Service()).
			Info("Unregistering service.")
		published.Shutdown()
		this.emit(Event{Kind: EventUnregistered, Service: published.Service()})
	}
}

func (this *Advertiser) emit(e Event) {
	if v := this.OnEvent; v != nil {
		v(e)
	}
}
