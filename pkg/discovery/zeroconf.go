package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"

	log "github.com/echocat/slf4g"
	"github.com/grandcat/zeroconf"
)

// ZeroconfRegistrar publishes services via multicast DNS-SD.
type ZeroconfRegistrar struct {
	Interfaces []net.Interface
}

func (this ZeroconfRegistrar) Register(requested Service) (Published, error) {
	server, err := zeroconf.Register(
		requested.Name,
		bareType(requested.Type),
		Domain,
		requested.Port,
		[]string{"port=" + strconv.Itoa(requested.Port)},
		this.Interfaces,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot register service %v: %w", requested, err)
	}
	return &zeroconfPublished{server, requested}, nil
}

type zeroconfPublished struct {
	server  *zeroconf.Server
	service Service
}

// zeroconf publishes the requested instance name unchanged.
func (this *zeroconfPublished) Service() Service {
	return this.service
}

func (this *zeroconfPublished) Shutdown() {
	this.server.Shutdown()
}

// Entry is a discovered instance of a service.
type Entry struct {
	Service
	Host      string   `json:"host"`
	Addresses []net.IP `json:"addresses,omitempty"`
}

// Address returns a dialable address, preferring the first announced IPv4
// address over the host name.
func (this Entry) Address() string {
	host := this.Host
	if len(this.Addresses) > 0 {
		host = this.Addresses[0].String()
	}
	return net.JoinHostPort(host, strconv.Itoa(this.Port))
}

type Browser interface {
	// Lookup blocks until an instance of the service type (with the given
	// name, if not empty) is found or ctx is done.
	Lookup(ctx context.Context, serviceType, name string) (Entry, error)
}

type ZeroconfBrowser struct{}

func (this ZeroconfBrowser) Lookup(ctx context.Context, serviceType, name string) (Entry, error) {
	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return Entry{}, fmt.Errorf("cannot create mDNS resolver: %w", err)
	}

	bCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(bCtx, bareType(serviceType), Domain, entries); err != nil {
		return Entry{}, fmt.Errorf("cannot browse for %s: %w", serviceType, err)
	}

	for {
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case e, ok := <-entries:
			if !ok {
				return Entry{}, ctx.Err()
			}
			if name != "" && e.Instance != name {
				log.With("instance", e.Instance).
					Debug("Ignoring service instance with other name.")
				continue
			}
			addresses := append(append([]net.IP{}, e.AddrIPv4...), e.AddrIPv6...)
			return Entry{
				Service: Service{
					Name: e.Instance,
					Type: serviceType,
					Port: e.Port,
				},
				Host:      e.HostName,
				Addresses: addresses,
			}, nil
		}
	}
}
