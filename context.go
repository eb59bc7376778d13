package zx

import (
	"sync"

	zerr "github.com/pjkundert/zeromq3-0/errors"
)

// endpoint is the (socket, options) tuple the registry keys by URI, per
// spec.md §3.
type endpoint struct {
	sock    *baseSocket
	sockhwm int // the binder's RCVHWM at bind time, used by inproc HWM composition
}

// endpointRegistry is the Context-owned, mutex-guarded map backing
// inproc/sys bind+connect rendezvous. Grounded on the teacher's
// transport/inproc "listeners" global, generalized from a
// listener/accepter pair into the direct socket-lookup model spec.md
// §4.1's connect() describes.
type endpointRegistry struct {
	mu   sync.Mutex
	eps  map[string]*endpoint
}

func newEndpointRegistry() *endpointRegistry {
	return &endpointRegistry{eps: make(map[string]*endpoint)}
}

func (r *endpointRegistry) register(uri string, ep *endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.eps[uri]; ok {
		return zerr.ErrAddrInUse
	}
	r.eps[uri] = ep
	return nil
}

func (r *endpointRegistry) lookup(uri string) (*endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.eps[uri]
	return ep, ok
}

func (r *endpointRegistry) unregister(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.eps, uri)
}

// unregisterSocket removes every endpoint currently bound to sock; used
// during the termination cascade (spec.md §4.5) so a terminated socket's
// inproc addresses become connectable-failing again.
func (r *endpointRegistry) unregisterSocket(sock *baseSocket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uri, ep := range r.eps {
		if ep.sock == sock {
			delete(r.eps, uri)
		}
	}
}

// ioThread is a placeholder worker context: spec.md treats the poller
// loop and concrete transport code as external collaborators, so the
// only thing the core needs from an I/O worker is something
// choose_io_thread can hand out by affinity mask. Threads are never
// marked busy or idle; the same thread may be handed out repeatedly.
type ioThread struct {
	id       int
	affinity uint64
}

// Context owns the I/O worker pool, the endpoint registry, and the
// reaper. Exactly one Context normally exists per process, but nothing
// here enforces that.
type Context struct {
	mu        sync.Mutex
	terminated bool

	threads []*ioThread
	eps     *endpointRegistry
	log     Logger

	reaper *reaper
}

// NewContext allocates a Context with n I/O worker slots (n may be 0 if
// the caller only ever uses inproc sockets).
func NewContext(n int) *Context {
	ctx := &Context{
		eps: newEndpointRegistry(),
		log: &logger{},
	}
	for i := 0; i < n; i++ {
		ctx.threads = append(ctx.threads, &ioThread{id: i, affinity: ^uint64(0)})
	}
	ctx.reaper = newReaper(ctx)
	return ctx
}

// Log exposes the context's logger for transports and protocol packages
// that want to record hiccups or anomalies without requiring their own
// logging dependency.
func (ctx *Context) Log() Logger { return ctx.log }

// SetLogger installs l as the sink every socket created from ctx from
// this point forward writes hiccup/detach diagnostics to, and returns
// whatever Logger was previously installed. Sockets already constructed
// keep the Logger they were handed at construction time, matching the
// teacher's SetPipeEventHook "only affects what's registered after
// this call" semantics.
func (ctx *Context) SetLogger(l Logger) Logger {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	old := ctx.log
	ctx.log = l
	return old
}

// chooseIOThread implements spec.md §4.5's choose_io_thread:
// affinityMask == 0 means "any thread is eligible".
func (ctx *Context) chooseIOThread(affinityMask uint64) (*ioThread, error) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.terminated {
		return nil, zerr.ErrTerm
	}
	for _, t := range ctx.threads {
		if affinityMask == 0 || affinityMask&t.affinity != 0 {
			return t, nil
		}
	}
	return nil, zerr.ErrTooManyThreads
}

// Terminated reports whether Term has been called on this Context.
func (ctx *Context) Terminated() bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.terminated
}

// Term signals every socket known to the reaper to terminate and blocks
// until all of them finish their termination cascade, per spec.md §4.5.
func (ctx *Context) Term() {
	ctx.mu.Lock()
	if ctx.terminated {
		ctx.mu.Unlock()
		return
	}
	ctx.terminated = true
	ctx.mu.Unlock()

	ctx.reaper.stopAll()
}

// registerSocket tells the reaper about a socket so Term can reach it.
// Close does not go through the reaper; a socket stays in the reaper's
// set until Term removes it.
func (ctx *Context) registerSocket(s *baseSocket) {
	ctx.reaper.add(s)
}
