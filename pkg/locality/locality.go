// Package locality decides whether a configured endpoint is the current
// process, so callers can execute in-process instead of opening a network
// connection to themselves.
//
// Two process-wide facts feed the decision: the service port this process
// listens on, published once at startup with SetServicePort, and the list of
// the machine's interface addresses, enumerated on first use and cached for the
// lifetime of the process.
package locality

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

var servicePort atomic.Int64

// SetServicePort publishes the port this process serves its native protocol on.
// It is meant to be called once during startup, before any source is built.
func SetServicePort(port int) {
	servicePort.Store(int64(port))
}

// ServicePort returns the port published with SetServicePort, or 0.
func ServicePort() int {
	return int(servicePort.Load())
}

var interfaceAddrs = sync.OnceValues(listInterfaceAddrs)

// InterfaceAddrs returns the addresses of the machine's network interfaces.
// The list is enumerated once per process.
func InterfaceAddrs() ([]net.IP, error) {
	return interfaceAddrs()
}

func listInterfaceAddrs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			ips = append(ips, v.IP)
		case *net.IPAddr:
			ips = append(ips, v.IP)
		}
	}
	return ips, nil
}

// LookupFunc resolves a host name to its addresses.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// LookupError is returned when a host name cannot be resolved. It is not
// treated as "remote": the caller decides the fallback.
type LookupError struct {
	Host string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("failed to resolve host %q: %v", e.Host, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Resolver answers locality questions. The zero value is not usable; build one
// with NewResolver.
type Resolver struct {
	servicePort func() int
	interfaces  func() ([]net.IP, error)
	lookup      LookupFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithServicePort pins the resolver's notion of the process's own port.
func WithServicePort(port int) Option {
	return func(r *Resolver) {
		r.servicePort = func() int { return port }
	}
}

// WithInterfaces replaces interface enumeration with a fixed address list.
func WithInterfaces(ips ...net.IP) Option {
	return func(r *Resolver) {
		r.interfaces = func() ([]net.IP, error) { return ips, nil }
	}
}

// WithLookup replaces DNS resolution.
func WithLookup(fn LookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = fn
	}
}

// NewResolver returns a resolver backed by the process-wide port and interface
// cache unless overridden by opts.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		servicePort: ServicePort,
		interfaces:  InterfaceAddrs,
		lookup:      defaultLookup,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver()

// Default returns the process-wide resolver.
func Default() *Resolver {
	return defaultResolver
}

// IsLocal reports whether host:port is the current process, using the
// process-wide resolver.
func IsLocal(ctx context.Context, host string, port int) (bool, error) {
	return defaultResolver.IsLocal(ctx, host, port)
}

// IsLocal reports whether host:port addresses this process: port must equal
// the service port and host must resolve to one of the interface addresses.
// Hosts are only resolved when the port matches.
func (r *Resolver) IsLocal(ctx context.Context, host string, port int) (bool, error) {
	if port != r.servicePort() {
		return false, nil
	}

	ifaces, err := r.interfaces()
	if err != nil {
		return false, err
	}

	addrs, err := r.resolve(ctx, host)
	if err != nil {
		return false, err
	}

	for _, addr := range addrs {
		for _, ip := range ifaces {
			if ip.Equal(addr) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *Resolver) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	ips, err := r.lookup(ctx, host)
	if err != nil {
		return nil, &LookupError{Host: host, Err: err}
	}
	if len(ips) == 0 {
		return nil, &LookupError{Host: host, Err: fmt.Errorf("no addresses found")}
	}
	return ips, nil
}
