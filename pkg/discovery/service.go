package discovery

import (
	"fmt"
	"strings"
)

const (
	ServiceType        = "_babymonitor._tcp."
	DefaultServiceName = "ProtectBabyMonitor"
	Domain             = "local."
)

// Service is an advertised (or discovered) service record.
type Service struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Port int    `json:"port"`
}

func (this Service) String() string {
	return fmt.Sprintf("%s.%s:%d", this.Name, this.Type, this.Port)
}

// bareType strips the trailing dot (and domain, if present) of a service
// type like "_babymonitor._tcp." as the mDNS libraries expect them without.
func bareType(t string) string {
	t = strings.TrimSuffix(t, ".")
	t = strings.TrimSuffix(t, "."+strings.TrimSuffix(Domain, "."))
	return t
}

type EventKind uint8

const (
	EventRegistered = EventKind(iota)
	EventRegistrationFailed
	EventUnregistered
)

func (this EventKind) String() string {
	switch this {
	case EventRegistered:
		return "registered"
	case EventRegistrationFailed:
		return "registrationFailed"
	case EventUnregistered:
		return "unregistered"
	default:
		return fmt.Sprintf("illegal-discovery-event-%d", this)
	}
}

// Event is delivered asynchronously for every change of the advertisement.
// For EventRegistered the Service carries the name actually assigned.
type Event struct {
	Kind    EventKind
	Service Service
	Err     error
}
