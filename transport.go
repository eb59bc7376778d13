package zx

import "sync"

// Transport is the pluggable collaborator spec.md §1 carves out of this
// core: concrete wire protocols live behind this interface. This module
// carries two implementations, transport/ws and transport/ipc; inproc is
// not a Transport and is handled directly by Bind/Connect.
// Transport implementations register themselves by scheme via
// RegisterTransport, following the database/sql driver-registration
// idiom the teacher's transport.go interface shape otherwise mirrors.
type Transport interface {
	// Scheme is the URI scheme this transport answers to, e.g. "tcp".
	Scheme() string

	// Dial establishes an outbound connection and returns the local
	// end of a Pipe to it.
	Dial(addr string) (Pipe, error)

	// Listen begins accepting inbound connections at addr.
	Listen(addr string) (TransportListener, error)

	// Multicast reports whether this scheme is a multicast transport
	// (pgm/epgm); bind() uses this to enforce the incompatible-pattern
	// rule against bidirectional socket types.
	Multicast() bool
}

// TransportListener accepts inbound pipes for a bound address.
type TransportListener interface {
	Accept() (Pipe, error)
	Close() error
	Addr() string
}

var transportRegistry = struct {
	mu       sync.Mutex
	byScheme map[string]Transport
}{byScheme: make(map[string]Transport)}

// RegisterTransport makes t available to Bind/Connect under t.Scheme().
// Transport packages call this from an init() func.
func RegisterTransport(t Transport) {
	transportRegistry.mu.Lock()
	defer transportRegistry.mu.Unlock()
	transportRegistry.byScheme[t.Scheme()] = t
}

func lookupTransport(scheme string) (Transport, bool) {
	transportRegistry.mu.Lock()
	defer transportRegistry.mu.Unlock()
	t, ok := transportRegistry.byScheme[scheme]
	return t, ok
}
