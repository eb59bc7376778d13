package zx

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	zerr "github.com/pjkundert/zeromq3-0/errors"
)

// SocketType names one of the socket patterns spec.md §2 enumerates.
type SocketType int

const (
	Pair SocketType = iota
	Pub
	Sub
	XPub
	XSub
	Req
	Rep
	XReq // alias Dealer
	XRep // alias Router
	Push
	Pull
)

// ProtocolInfo describes a protocol's own number/name and the peer it
// expects to talk to, grounded on the teacher's protocol.Info.
type ProtocolInfo struct {
	Self     SocketType
	Peer     SocketType
	SelfName string
	PeerName string
}

// ProtocolBase is the capability set spec.md §9's design notes describe:
// {send, recv, attach_pipe, xsetsockopt, xgetsockopt, has_in, has_out,
// has_subs}. Every socket type package implements all of these methods
// itself; there is no embedded default. Operations that do not apply to a
// type return ErrNotSupported (XSend/XRecv), ErrBadProperty (options) or
// -1 (XHasSubs).
type ProtocolBase interface {
	Info() ProtocolInfo

	// XSend hands a message to the protocol for dispatch to one or more
	// pipes. Returns ErrAgain if no pipe can currently accept it.
	XSend(m *Message) error

	// XRecv returns the next message the protocol has ready, or
	// ErrAgain if none is available yet.
	XRecv() (*Message, error)

	// XAttachPipe is called once a Pipe has been fully set up (identity
	// exchanged if applicable) so the protocol can start using it.
	XAttachPipe(p Pipe, identity []byte) error

	// XSetOption / XGetOption handle protocol-specific options
	// (SUBSCRIBE, UNSUBSCRIBE, ...); return ErrBadProperty if name is
	// not recognized by this protocol.
	XSetOption(name string, v interface{}) error
	XGetOption(name string) (interface{}, error)

	// XHasIn / XHasOut back the non-blocking EVENTS getsockopt.
	XHasIn() bool
	XHasOut() bool

	// XHasSubs backs the SUBSCRIBE query getsockopt overload on
	// PUB/XPUB; protocols that don't support it return -1.
	XHasSubs(prefix []byte) int
}

// Socket is the public handle applications use: send/recv, bind/connect,
// option access, and close. Protocol-specific types (protocol/pair,
// protocol/pub, ...) each return something satisfying this interface
// from their NewSocket constructor.
type Socket interface {
	Info() ProtocolInfo

	Bind(uri string) error
	Connect(uri string) error

	// DialOptions/ListenOptions apply options to the socket, one
	// SetOption call at a time, and then connect/bind; nothing makes the
	// two steps atomic. NewDialer/NewListener apply the options the same
	// way and return a handle to the endpoint without connecting/binding
	// yet, for callers that want to inspect or hold onto it before
	// triggering the I/O.
	DialOptions(uri string, options map[string]interface{}) error
	ListenOptions(uri string, options map[string]interface{}) error
	NewDialer(uri string, options map[string]interface{}) (Dialer, error)
	NewListener(uri string, options map[string]interface{}) (Listener, error)

	Send(m *Message, flags int) error
	Recv(flags int) (*Message, error)

	SetOption(name string, v interface{}) error
	GetOption(name string) (interface{}, error)

	// HasSubs answers the overloaded getsockopt(SUBSCRIBE) query spec.md
	// §6 describes: the number of pipes subscribed at exactly prefix.
	// Protocols other than PUB and XPUB return -1.
	HasSubs(prefix []byte) int

	// SetPipeEventHook installs hook to be called on every Attaching/
	// Attached/Detached transition of a Pipe owned by this socket, and
	// returns whatever hook was previously installed (nil if none).
	SetPipeEventHook(hook PipeEventHook) PipeEventHook

	Close() error
}

// SendFlag / RecvFlag bits accepted by Send/Recv.
const (
	FlagDontWait = 1 << 0
	FlagMore     = 1 << 1
	FlagLabel    = 1 << 2
)

type socketState int

const (
	stateActive socketState = iota
	stateTerminating
	stateReaping
	stateDestroyed
)

// generateIdentity returns a fresh 17-byte identity whose leading byte is
// zero, the reserved marker distinguishing auto-assigned identities from
// user-supplied ones (spec.md §3 / §4.3). Grounded on destiny-zmq4's
// SocketIdentity + newUUID() call site, since the teacher has no
// identity concept of its own.
func generateIdentity() []byte {
	id := make([]byte, 17)
	// id[0] stays zero.
	if _, err := rand.Read(id[1:]); err != nil {
		// crypto/rand failing is a fatal invariant violation (spec.md
		// §7 treats this class of failure as a bug, not a recoverable
		// runtime error), but it never actually returns an error on
		// any platform Go supports, so no fallback path exists.
		panic("zx: crypto/rand failed: " + err.Error())
	}
	return id
}

// baseSocket is the embedded "socket-base" struct spec.md §9 recommends:
// mailbox, pipe list, options, and lifecycle flags shared by every
// protocol package. Grounded on teacher impl/socket.go's locked core
// struct.
type baseSocket struct {
	mu sync.Mutex

	ctx   *Context
	proto ProtocolBase

	opts *optionSet
	id   []byte

	pipes map[PipeID]Pipe

	state          socketState
	ctxTerminated  bool
	pendingAcks    int
	termDone       chan struct{}

	recvCallCount  int
	lastRcvMore    bool
	lastRcvLabel   bool

	uris map[string]struct{} // bound endpoints owned by this socket, for cleanup

	wake *Mailbox // signaled by ReadActivated/WriteActivated to wake Send/Recv retry loops

	pipeHook PipeEventHook

	log Logger
}

const inboundPollRate = 32

func newBaseSocket(ctx *Context, proto ProtocolBase) *baseSocket {
	s := &baseSocket{
		ctx:   ctx,
		proto: proto,
		opts:  newOptionSet(),
		pipes: make(map[PipeID]Pipe),
		uris:  make(map[string]struct{}),
		wake:  NewMailbox(),
		log:   ctx.log,
	}
	s.opts.identity = generateIdentity()
	ctx.registerSocket(s)
	return s
}

// NewSocket allocates a Socket backed by proto, registering it with ctx's
// reaper. Protocol packages (protocol/pair, protocol/pub, ...) call this
// from their own exported NewSocket wrapper rather than constructing a
// baseSocket directly, since baseSocket is unexported. Grounded on the
// teacher's impl.MakeSocket.
func NewSocket(ctx *Context, proto ProtocolBase) Socket {
	return newBaseSocket(ctx, proto)
}

func (s *baseSocket) Info() ProtocolInfo { return s.proto.Info() }

// --- options -------------------------------------------------------------

func (s *baseSocket) SetOption(name string, v interface{}) error {
	s.mu.Lock()
	if s.state != stateActive {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	handled, err := s.opts.setCore(name, v)
	s.mu.Unlock()
	if handled {
		return err
	}
	return s.proto.XSetOption(name, v)
}

func (s *baseSocket) GetOption(name string) (interface{}, error) {
	switch name {
	case OptionRcvMore:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastRcvMore, nil
	case OptionRcvLabel:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastRcvLabel, nil
	case OptionEvents:
		return int(s.events()), nil
	}
	s.mu.Lock()
	v, handled, err := s.opts.getCore(name)
	s.mu.Unlock()
	if handled {
		return v, err
	}
	return s.proto.XGetOption(name)
}

// HasSubs delegates to the protocol's XHasSubs.
func (s *baseSocket) HasSubs(prefix []byte) int {
	return s.proto.XHasSubs(prefix)
}

// SetPipeEventHook installs hook and returns whatever was installed
// before it.
func (s *baseSocket) SetPipeEventHook(hook PipeEventHook) PipeEventHook {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.pipeHook
	s.pipeHook = hook
	return old
}

func (s *baseSocket) firePipeHook(ev PipeEvent, p Pipe) {
	s.mu.Lock()
	hook := s.pipeHook
	s.mu.Unlock()
	if hook != nil {
		hook(ev, p)
	}
}

// events implements the non-blocking EVENTS getsockopt: the OR of PollIn
// if XHasIn() and PollOut if XHasOut(). Never blocks.
func (s *baseSocket) events() PollEvents {
	var ev PollEvents
	if s.proto.XHasIn() {
		ev |= PollIn
	}
	if s.proto.XHasOut() {
		ev |= PollOut
	}
	return ev
}

// --- bind / connect ------------------------------------------------------

func splitURI(uri string) (scheme, addr string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", zerr.ErrInvalid
	}
	return uri[:i], uri[i+3:], nil
}

func isMulticastScheme(scheme string) bool {
	return scheme == "pgm" || scheme == "epgm"
}

// bindablePattern reports whether typ may be paired with a multicast
// transport: only PUB/SUB/XPUB/XSUB, mirroring spec.md §4.1's
// incompatible-protocol rule.
func bindablePattern(typ SocketType) bool {
	switch typ {
	case Pub, Sub, XPub, XSub:
		return true
	default:
		return false
	}
}

// Bind implements spec.md §4.1's bind(uri).
func (s *baseSocket) Bind(uri string) error {
	s.mu.Lock()
	if s.ctxTerminated {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	if s.state != stateActive {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	s.mu.Unlock()

	scheme, addr, err := splitURI(uri)
	if err != nil {
		return err
	}

	switch scheme {
	case "inproc", "sys":
		ep := &endpoint{sock: s, sockhwm: s.optionInt(OptionRecvHWM)}
		if err := s.ctx.eps.register(uri, ep); err != nil {
			return err
		}
		s.mu.Lock()
		s.uris[uri] = struct{}{}
		s.mu.Unlock()
		return nil
	case "pgm", "epgm":
		// Binding a multicast scheme behaves like connect per
		// spec.md §4.1.
		return s.Connect(uri)
	default:
		t, ok := lookupTransport(scheme)
		if !ok {
			return zerr.ErrProtoNotSupported
		}
		if t.Multicast() && !bindablePattern(s.proto.Info().Self) {
			return zerr.ErrNotCompat
		}
		if _, err := s.ctx.chooseIOThread(s.optionUint64(OptionAffinity)); err != nil {
			return err
		}
		l, err := t.Listen(addr)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.uris[uri] = struct{}{}
		s.mu.Unlock()
		go s.acceptLoop(l)
		return nil
	}
}

func (s *baseSocket) acceptLoop(l TransportListener) {
	for {
		p, err := l.Accept()
		if err != nil {
			return
		}
		// A wire transport carries no identity handshake of its own, so
		// the peer's identity is always auto-assigned here; only inproc
		// (Connect, below) has direct access to the peer's real
		// OptionIdentity to propagate instead.
		s.attach(p, nil)
	}
}

// Connect implements spec.md §4.1's connect(uri).
func (s *baseSocket) Connect(uri string) error {
	s.mu.Lock()
	if s.ctxTerminated || s.state != stateActive {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	s.mu.Unlock()

	scheme, addr, err := splitURI(uri)
	if err != nil {
		return err
	}

	switch scheme {
	case "inproc", "sys":
		ep, ok := s.ctx.eps.lookup(uri)
		if !ok {
			return zerr.ErrConnRefused
		}
		connHWM := s.optionInt(OptionSendHWM)
		hwm := combineHWM(ep.sockhwm, connHWM)
		delayClose := s.optionBool(OptionDelayOnClose)
		delayDiscon := s.optionBool(OptionDelayOnDisconnect)
		local, remote := pipepair(hwm, hwm, delayClose, delayDiscon)
		// Both ends of an inproc pair are local baseSockets, so unlike
		// the wire-transport branches below (which have no handshake to
		// carry a peer identity), each side's own OptionIdentity is
		// available directly and is handed to the other side's
		// XAttachPipe — the only way a user-set ROUTER/DEALER identity
		// (spec.md §4.3) ever reaches its peer.
		if !ep.sock.attach(remote, s.opts.identity) {
			local.Terminate(0)
			return zerr.ErrNotCompat
		}
		s.attach(local, ep.sock.opts.identity)
		return nil
	case "pgm", "epgm":
		t, ok := lookupTransport(scheme)
		if !ok {
			return zerr.ErrProtoNotSupported
		}
		if t.Multicast() && !bindablePattern(s.proto.Info().Self) {
			return zerr.ErrNotCompat
		}
		p, err := t.Dial(addr)
		if err != nil {
			return err
		}
		s.attach(p, nil)
		return nil
	default:
		t, ok := lookupTransport(scheme)
		if !ok {
			return zerr.ErrProtoNotSupported
		}
		if _, err := s.ctx.chooseIOThread(s.optionUint64(OptionAffinity)); err != nil {
			return err
		}
		p, err := t.Dial(addr)
		if err != nil {
			return err
		}
		s.attach(p, nil)
		return nil
	}
}

// Dialer is a handle to an outbound endpoint that has not yet connected,
// returned by NewDialer. Grounded on the teacher's Dialer/NewDialer split
// between describing an endpoint and actually running it.
type Dialer interface {
	Dial() error
	Close() error
	Address() string
	SetOption(name string, v interface{}) error
	GetOption(name string) (interface{}, error)
}

// Listener is Dialer's bind-side counterpart, returned by NewListener.
type Listener interface {
	Listen() error
	Close() error
	Address() string
	SetOption(name string, v interface{}) error
	GetOption(name string) (interface{}, error)
}

type endpointHandle struct {
	sock *baseSocket
	uri  string
}

func (d *endpointHandle) Dial() error   { return d.sock.Connect(d.uri) }
func (d *endpointHandle) Listen() error { return d.sock.Bind(d.uri) }
func (d *endpointHandle) Address() string { return d.uri }
func (d *endpointHandle) SetOption(name string, v interface{}) error {
	return d.sock.SetOption(name, v)
}
func (d *endpointHandle) GetOption(name string) (interface{}, error) {
	return d.sock.GetOption(name)
}

// Close reports the endpoint dormant again. Unlike the teacher, this core
// has no per-endpoint pipe registry to selectively tear down (spec.md §3
// tracks pipes per-socket, not per-dialer/listener), so Close is a no-op
// here; tearing down the underlying pipe(s) is Socket.Close's job.
func (d *endpointHandle) Close() error { return nil }

func applyOptions(s *baseSocket, options map[string]interface{}) error {
	for name, v := range options {
		if err := s.SetOption(name, v); err != nil {
			return err
		}
	}
	return nil
}

// NewDialer returns a Dialer for uri without connecting yet; the caller
// invokes Dial() when ready. Grounded on teacher socket.go's NewDialer.
func (s *baseSocket) NewDialer(uri string, options map[string]interface{}) (Dialer, error) {
	if err := applyOptions(s, options); err != nil {
		return nil, err
	}
	return &endpointHandle{sock: s, uri: uri}, nil
}

// NewListener is NewDialer's bind-side counterpart.
func (s *baseSocket) NewListener(uri string, options map[string]interface{}) (Listener, error) {
	if err := applyOptions(s, options); err != nil {
		return nil, err
	}
	return &endpointHandle{sock: s, uri: uri}, nil
}

// DialOptions applies options then immediately connects, folding
// NewDialer+Dial into the single call the teacher's socket.go exposes
// alongside the two-step form.
func (s *baseSocket) DialOptions(uri string, options map[string]interface{}) error {
	d, err := s.NewDialer(uri, options)
	if err != nil {
		return err
	}
	return d.Dial()
}

// ListenOptions is DialOptions's bind-side counterpart.
func (s *baseSocket) ListenOptions(uri string, options map[string]interface{}) error {
	l, err := s.NewListener(uri, options)
	if err != nil {
		return err
	}
	return l.Listen()
}

// combineHWM implements spec.md §4.1 / §8 S6: the effective capacity is
// the sum of the binder's RCVHWM and the connector's SNDHWM, unless
// either side declares 0 (unbounded), in which case the result is 0.
func combineHWM(binderRcv, connectorSnd int) int {
	if binderRcv == 0 || connectorSnd == 0 {
		return 0
	}
	return binderRcv + connectorSnd
}

func (s *baseSocket) optionInt(name string) int {
	v, _, _ := s.opts.getCore(name)
	n, _ := v.(int)
	return n
}

func (s *baseSocket) optionBool(name string) bool {
	v, _, _ := s.opts.getCore(name)
	b, _ := v.(bool)
	return b
}

func (s *baseSocket) optionUint64(name string) uint64 {
	v, _, _ := s.opts.getCore(name)
	n, _ := v.(uint64)
	return n
}

// attach wires p into this socket: auto-assign identity if the peer
// didn't supply one, hand it to the protocol, install the socket as the
// pipe's event sink, and track it for termination accounting. It reports
// whether the protocol accepted the pipe, so callers plumbing both ends
// of an inproc pair (Connect) can avoid leaving the accepting end
// dangling when the other end is rejected.
func (s *baseSocket) attach(p Pipe, peerIdentity []byte) bool {
	if len(peerIdentity) == 0 {
		peerIdentity = generateIdentity()
	}
	s.firePipeHook(PipeEventAttaching, p)

	s.mu.Lock()
	if s.state != stateActive {
		s.mu.Unlock()
		p.Terminate(0)
		return false
	}
	s.pipes[p.ID()] = p
	s.mu.Unlock()

	p.SetSink(s)
	if err := s.proto.XAttachPipe(p, peerIdentity); err != nil {
		s.mu.Lock()
		delete(s.pipes, p.ID())
		s.mu.Unlock()
		p.Terminate(0)
		return false
	}
	s.firePipeHook(PipeEventAttached, p)
	return true
}

// --- EventSink -------------------------------------------------------------

func (s *baseSocket) ReadActivated(p Pipe) {
	if h, ok := s.proto.(interface{ ReadActivated(Pipe) }); ok {
		h.ReadActivated(p)
	}
	s.wake.Send(Command{Kind: CmdActivateRead, Pipe: p})
}

func (s *baseSocket) WriteActivated(p Pipe) {
	if h, ok := s.proto.(interface{ WriteActivated(Pipe) }); ok {
		h.WriteActivated(p)
	}
	s.wake.Send(Command{Kind: CmdActivateWrite, Pipe: p})
}

func (s *baseSocket) Hiccuped(p Pipe) {
	if s.log != nil {
		s.log.Logf("pipe %d hiccuped, dropping in-flight messages", p.ID())
	}
	if h, ok := s.proto.(interface{ Hiccuped(Pipe) }); ok {
		h.Hiccuped(p)
	}
	s.wake.Send(Command{Kind: CmdHiccup, Pipe: p})
}

func (s *baseSocket) Terminated(p Pipe) {
	s.mu.Lock()
	delete(s.pipes, p.ID())
	acksLeft := -1
	if s.state == stateTerminating {
		s.pendingAcks--
		acksLeft = s.pendingAcks
	}
	done := s.termDone
	s.mu.Unlock()

	if h, ok := s.proto.(interface{ RemovePipe(Pipe) }); ok {
		h.RemovePipe(p)
	}
	s.firePipeHook(PipeEventDetached, p)
	if s.log != nil {
		s.log.Logf("pipe %d detached", p.ID())
	}
	if acksLeft == 0 && done != nil {
		close(done)
	}
}

// --- send / recv -----------------------------------------------------------

// Send implements spec.md §4.1's send(msg, flags).
func (s *baseSocket) Send(m *Message, flags int) error {
	s.mu.Lock()
	if s.ctxTerminated {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	if s.state != stateActive {
		s.mu.Unlock()
		return zerr.ErrTerm
	}
	timeout := s.opts.sendTimeout
	s.mu.Unlock()

	m.More = flags&FlagMore != 0
	m.Label = flags&FlagLabel != 0

	nonBlocking := flags&FlagDontWait != 0 || timeout == 0

	err := s.proto.XSend(m)
	if err != zerr.ErrAgain {
		return err
	}
	if nonBlocking {
		return zerr.ErrAgain
	}

	deadline := deadlineFor(timeout)
	mb := s.mailboxOf()
	for {
		remaining := remainingOrInfinite(deadline)
		if remaining == 0 {
			return zerr.ErrAgain
		}
		mb.Wait(remaining)
		s.mu.Lock()
		closing := s.state != stateActive
		s.mu.Unlock()
		if closing {
			return zerr.ErrTerm
		}
		err = s.proto.XSend(m)
		if err != zerr.ErrAgain {
			return err
		}
		if hasDeadlinePassed(deadline) {
			return zerr.ErrAgain
		}
	}
}

// Recv implements spec.md §4.1's recv(msg, flags), including the hybrid
// throttling strategy described there: count calls and only drain the
// mailbox every inboundPollRate calls while messages are flowing, and
// drain it before blocking when none is available.
func (s *baseSocket) Recv(flags int) (*Message, error) {
	s.mu.Lock()
	if s.ctxTerminated {
		s.mu.Unlock()
		return nil, zerr.ErrTerm
	}
	if s.state != stateActive {
		s.mu.Unlock()
		return nil, zerr.ErrTerm
	}
	timeout := s.opts.recvTimeout
	s.recvCallCount++
	pollNow := s.recvCallCount%inboundPollRate == 0
	s.mu.Unlock()

	if pollNow {
		s.wake.Drain(0)
	}

	nonBlocking := flags&FlagDontWait != 0 || timeout == 0

	m, err := s.proto.XRecv()
	if err == nil {
		s.recordRcvFlags(m)
		return m, nil
	}
	if err != zerr.ErrAgain {
		return nil, err
	}
	if nonBlocking {
		return nil, zerr.ErrAgain
	}

	deadline := deadlineFor(timeout)
	mb := s.mailboxOf()
	mb.Drain(0)
	for {
		remaining := remainingOrInfinite(deadline)
		if remaining == 0 {
			return nil, zerr.ErrAgain
		}
		mb.Wait(remaining)
		s.mu.Lock()
		closing := s.state != stateActive
		s.mu.Unlock()
		if closing {
			return nil, zerr.ErrTerm
		}
		m, err = s.proto.XRecv()
		if err == nil {
			s.recordRcvFlags(m)
			return m, nil
		}
		if err != zerr.ErrAgain {
			return nil, err
		}
		if hasDeadlinePassed(deadline) {
			return nil, zerr.ErrAgain
		}
	}
}

func (s *baseSocket) recordRcvFlags(m *Message) {
	s.mu.Lock()
	s.lastRcvMore = m.More
	s.lastRcvLabel = m.Label
	s.mu.Unlock()
	m.More = false
	m.Label = false
}

// mailboxOf returns the socket's own wake Mailbox: ReadActivated and
// WriteActivated signal it whenever a pipe transitions, so Send/Recv's
// retry loop below wakes promptly instead of pure polling.
func (s *baseSocket) mailboxOf() *Mailbox {
	return s.wake
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func remainingOrInfinite(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 100 * time.Millisecond
	}
	r := time.Until(deadline)
	if r < 0 {
		return 0
	}
	if r > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return r
}

func hasDeadlinePassed(deadline time.Time) bool {
	if deadline.IsZero() {
		return false
	}
	return time.Now().After(deadline)
}

// --- close / termination cascade -------------------------------------------

// Close implements spec.md §4.1's close(): it unregisters the socket's
// inproc endpoints, starts termination of every attached pipe and
// returns immediately; a background goroutine moves the socket to the
// destroyed state once every pipe has reported Terminated. The reaper is
// not involved.
func (s *baseSocket) Close() error {
	s.mu.Lock()
	if s.state != stateActive {
		s.mu.Unlock()
		return zerr.ErrClosed
	}
	s.state = stateTerminating
	s.ctx.eps.unregisterSocket(s)
	pipes := make([]Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.pendingAcks = len(pipes)
	done := make(chan struct{})
	s.termDone = done
	if s.pendingAcks == 0 {
		close(done)
	}
	s.mu.Unlock()

	for _, p := range pipes {
		p.Terminate(time.Second)
	}

	go func() {
		<-done
		s.mu.Lock()
		s.state = stateReaping
		s.mu.Unlock()
		s.mu.Lock()
		s.state = stateDestroyed
		s.mu.Unlock()
	}()
	return nil
}

// ctxTerminate is invoked by Context.Term's reaper cascade: mark
// ctx_terminated, then run the same termination path Close uses.
func (s *baseSocket) ctxTerminate() {
	s.mu.Lock()
	s.ctxTerminated = true
	s.mu.Unlock()
	_ = s.Close()
}

func (s *baseSocket) waitTerminated() {
	s.mu.Lock()
	done := s.termDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
