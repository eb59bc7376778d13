package zx

import (
	"math/rand"
	"sync"
	"time"

	zerr "github.com/pjkundert/zeromq3-0/errors"
)

// PipeID uniquely names a Pipe for the lifetime of the Context that
// created it. PipeIDs come from a process-wide counter (nextPipeID);
// auto-assigned identities come from crypto/rand (generateIdentity), so
// the two never share an allocator. PipeID is never sent over the wire,
// Identity sometimes is (ROUTER).
type PipeID uint32

// EventSink receives the four pipe-lifecycle events spec.md §4.4
// describes. baseSocket implements EventSink: each event is passed to the
// protocol's handler (if it has one) synchronously, on whatever goroutine
// raised it (for ReadActivated, the peer's Send), and a wake Command is
// then posted to the socket's mailbox so a blocked Send/Recv retries.
type EventSink interface {
	ReadActivated(p Pipe)
	WriteActivated(p Pipe)
	Hiccuped(p Pipe)
	Terminated(p Pipe)
}

// Pipe is a reference-counted handle to one directed end of a bounded
// message conduit. Pipes are always created in linked pairs by pipepair;
// a Pipe's Recv drains what its peer's Send enqueued.
type Pipe interface {
	ID() PipeID

	// Send enqueues a message for the peer to Recv. Returns ErrAgain if
	// the send high-water mark has been reached.
	Send(m *Message) error

	// Recv dequeues the next message, blocking until one is available
	// or the pipe is terminated.
	Recv() (*Message, error)

	// TryRecv dequeues the next message without blocking. ok is false
	// if none is currently queued. Protocol XRecv implementations use
	// this rather than Recv, since xrecv must be a non-blocking probe
	// per spec.md §4.1 (blocking/retry lives in the socket coordinator).
	TryRecv() (m *Message, ok bool)

	// Flush wakes a blocked peer Recv without enqueuing anything; used
	// after a batch of Sends to coalesce wakeups.
	Flush()

	// Terminate begins the two-phase shutdown handshake. linger is how
	// long a delay-on-close pipe waits before this end is closed; the
	// wait is not cut short when the queue empties.
	Terminate(linger time.Duration)

	// SetSink installs the event sink that ReadActivated/WriteActivated/
	// Hiccuped/Terminated are delivered to.
	SetSink(sink EventSink)

	// CanRecv reports whether TryRecv would currently succeed, without
	// consuming a message. Backs xhas_in.
	CanRecv() bool

	// CanSend reports whether Send would currently succeed (i.e. the
	// peer's queue has not reached its high-water mark), without
	// enqueuing anything. Backs xhas_out.
	CanSend() bool
}

// PipeEvent names what is transpiring on a Pipe being reported to a
// PipeEventHook. Grounded on the teacher's pipe.go PipeEvent/PipeEventHook
// pair.
type PipeEvent int

const (
	// PipeEventAttaching fires before the Pipe is handed to the
	// protocol's XAttachPipe.
	PipeEventAttaching PipeEvent = iota
	// PipeEventAttached fires once XAttachPipe has accepted the Pipe.
	PipeEventAttached
	// PipeEventDetached fires once the Pipe has been fully terminated
	// and removed from the socket.
	PipeEventDetached
)

// PipeEventHook is an application-supplied function invoked on the
// Attaching/Attached/Detached transitions of every Pipe a Socket owns,
// for diagnostics such as connection counting. Grounded on the teacher's
// pipe.go PipeEventHook.
type PipeEventHook func(PipeEvent, Pipe)

var pipeIDs struct {
	sync.Mutex
	next PipeID
}

func nextPipeID() PipeID {
	pipeIDs.Lock()
	defer pipeIDs.Unlock()
	if pipeIDs.next == 0 {
		pipeIDs.next = PipeID(rand.New(rand.NewSource(time.Now().UnixNano())).Uint32() | 1)
	}
	id := pipeIDs.next
	pipeIDs.next++
	if pipeIDs.next == 0 {
		pipeIDs.next = 1
	}
	return id
}

// pipeEnd is one direction's worth of state shared by a pipepair: its own
// inbound queue (filled by the peer's Send) and a reference to the peer
// so Send can reach across to the other side's queue.
type pipeEnd struct {
	mu   sync.Mutex
	cond *sync.Cond

	id   PipeID
	peer *pipeEnd
	sink EventSink

	q   []*Message
	hwm int // 0 means unbounded

	closed      bool
	termReqd    bool
	termAcked   bool
	delayClose  bool
	delayDiscon bool
}

func newPipeEnd(hwm int, delayClose, delayDiscon bool) *pipeEnd {
	p := &pipeEnd{id: nextPipeID(), hwm: hwm, delayClose: delayClose, delayDiscon: delayDiscon}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// pipepair constructs two cross-linked pipe ends. hwmAB is the send HWM
// from a to b (i.e. b's inbound bound); hwmBA is the send HWM from b to
// a. A HWM of 0 denotes unbounded, matching spec.md's "combined HWM...
// if either side declares 0, the result is zero" composition rule applied
// upstream in connect().
// NewPipePair is pipepair's exported counterpart, for Transport
// implementations outside this package (transport/ws, transport/ipc)
// that need a local, in-process queue to bridge against a wire
// connection's own read/write pumps.
func NewPipePair(hwmAB, hwmBA int, delayClose, delayDiscon bool) (Pipe, Pipe) {
	return pipepair(hwmAB, hwmBA, delayClose, delayDiscon)
}

func pipepair(hwmAB, hwmBA int, delayClose, delayDiscon bool) (Pipe, Pipe) {
	a := newPipeEnd(hwmBA, delayClose, delayDiscon)
	b := newPipeEnd(hwmAB, delayClose, delayDiscon)
	a.peer = b
	b.peer = a
	return a, b
}

func (p *pipeEnd) ID() PipeID { return p.id }

func (p *pipeEnd) SetSink(sink EventSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Send enqueues onto the peer's inbound queue: "a.Send" makes the message
// available to "b.Recv".
func (p *pipeEnd) Send(m *Message) error {
	peer := p.peer
	if peer == nil {
		return zerr.ErrClosed
	}

	peer.mu.Lock()
	if peer.closed {
		peer.mu.Unlock()
		return zerr.ErrClosed
	}
	if peer.hwm > 0 && len(peer.q) >= peer.hwm {
		peer.mu.Unlock()
		return zerr.ErrAgain
	}
	wasEmpty := len(peer.q) == 0
	peer.q = append(peer.q, m)
	sink := peer.sink
	peer.cond.Broadcast()
	peer.mu.Unlock()

	if wasEmpty && sink != nil {
		sink.ReadActivated(peer)
	}
	return nil
}

// Recv dequeues the next message this end has received, blocking until
// one is available or the pipe is torn down.
func (p *pipeEnd) Recv() (*Message, error) {
	p.mu.Lock()
	for len(p.q) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.q) == 0 && p.closed {
		p.mu.Unlock()
		return nil, zerr.ErrClosed
	}
	m := p.q[0]
	p.q = p.q[1:]
	belowHWM := p.hwm > 0 && len(p.q) == p.hwm-1
	sink := p.sink
	peer := p.peer
	p.mu.Unlock()

	if belowHWM && sink != nil && peer != nil {
		sink.WriteActivated(peer)
	}
	return m, nil
}

// TryRecv is the non-blocking counterpart to Recv.
func (p *pipeEnd) TryRecv() (*Message, bool) {
	p.mu.Lock()
	if len(p.q) == 0 {
		p.mu.Unlock()
		return nil, false
	}
	m := p.q[0]
	p.q = p.q[1:]
	belowHWM := p.hwm > 0 && len(p.q) == p.hwm-1
	sink := p.sink
	peer := p.peer
	p.mu.Unlock()

	if belowHWM && sink != nil && peer != nil {
		sink.WriteActivated(peer)
	}
	return m, true
}

func (p *pipeEnd) CanRecv() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.q) > 0
}

func (p *pipeEnd) CanSend() bool {
	peer := p.peer
	if peer == nil {
		return false
	}
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return false
	}
	return peer.hwm == 0 || len(peer.q) < peer.hwm
}

func (p *pipeEnd) Flush() {
	peer := p.peer
	if peer == nil {
		return
	}
	peer.mu.Lock()
	peer.cond.Broadcast()
	peer.mu.Unlock()
}

// hiccup discards the messages queued on this end and notifies this
// end's sink (the peer end is left untouched),
// modeling a transport disconnect/reconnect that the spec says must not
// duplicate or silently resync without signaling the owning socket.
func (p *pipeEnd) hiccup() {
	p.mu.Lock()
	p.q = nil
	sink := p.sink
	p.cond.Broadcast()
	p.mu.Unlock()
	if sink != nil {
		sink.Hiccuped(p)
	}
}

// Terminate starts the two-phase handshake: this end is marked closed
// once linger elapses (delay-on-close pipes with a positive linger) or
// immediately otherwise, then the peer is acked so it terminates too.
// Messages already queued on this end are not dropped: Recv/TryRecv
// still return them after the end is closed.
func (p *pipeEnd) Terminate(linger time.Duration) {
	p.mu.Lock()
	if p.termReqd {
		p.mu.Unlock()
		return
	}
	p.termReqd = true
	delay := p.delayClose && linger > 0
	p.mu.Unlock()

	if delay {
		time.AfterFunc(linger, p.finishTerm)
		return
	}
	p.finishTerm()
}

func (p *pipeEnd) finishTerm() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	sink := p.sink
	p.cond.Broadcast()
	p.mu.Unlock()

	if peer := p.peer; peer != nil {
		peer.ackTerm()
	}
	if sink != nil {
		sink.Terminated(p)
	}
}

func (p *pipeEnd) ackTerm() {
	p.mu.Lock()
	already := p.termAcked
	p.termAcked = true
	p.mu.Unlock()
	if !already {
		p.Terminate(0)
	}
}
