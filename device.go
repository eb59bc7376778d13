package zx

import (
	"sync"

	zerr "github.com/pjkundert/zeromq3-0/errors"
)

// Device forwards messages between two sockets in both directions,
// running until either side's Send or Recv fails (most commonly because
// the application closed one of them). Passing the same socket for both
// s1 and s2, or nil for one of them, establishes a loopback device; that
// is only meaningful for protocols that can peer with themselves (PAIR,
// XPUB/XSUB topologies), never REQ/REP. Grounded on the teacher's
// device.go forwarding-loop idiom.
type Device struct {
	s1, s2 Socket

	mu      sync.Mutex
	stopped bool
	lastErr error
	active  int
	done    chan struct{}
}

// NewDevice builds a Device wiring s1 and s2 together. It does not start
// forwarding until Start is called.
func NewDevice(s1, s2 Socket) (*Device, error) {
	d := &Device{}
	switch {
	case s1 == nil && s2 == nil:
		return nil, zerr.ErrClosed
	case s1 == nil:
		d.s1 = s2
	case s2 == nil:
		d.s2 = s1
	default:
		d.s1, d.s2 = s1, s2
	}
	if d.s1 == nil {
		d.s1 = d.s2
	}
	if d.s2 == nil {
		d.s2 = d.s1
	}
	return d, nil
}

// Start launches the two forwarding goroutines. Calling Start twice on
// the same Device without an intervening Stop is a programming error.
func (d *Device) Start() error {
	d.mu.Lock()
	d.stopped = false
	d.lastErr = nil
	d.active = 2
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.forward(d.s1, d.s2)
	go d.forward(d.s2, d.s1)
	return nil
}

// Stop closes both sockets, which unblocks the forwarding goroutines'
// pending Recv/Send calls with ErrClosed/ErrTerm.
func (d *Device) Stop() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	_ = d.s1.Close()
	if d.s2 != d.s1 {
		_ = d.s2.Close()
	}
	return nil
}

// Done returns a channel that is closed once both forwarding directions
// have exited.
func (d *Device) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// LastError reports the error that caused either forwarding direction to
// stop, or nil if the device is still running or never started.
func (d *Device) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Device) forward(src, dst Socket) {
	for {
		m, err := src.Recv(0)
		if err != nil {
			d.finish(err)
			return
		}
		if err := dst.Send(m, 0); err != nil {
			d.finish(err)
			return
		}
	}
}

func (d *Device) finish(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.active--
	if d.active <= 0 && d.done != nil {
		close(d.done)
	}
	d.mu.Unlock()
}
