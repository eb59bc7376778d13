package zx

import (
	"sync"
	"time"
)

// Mailbox is a process-local, lock-guarded FIFO of commands with a
// signaling channel an external poller (or this object's own owning
// goroutine) can wait on. It plays the role spec.md §4.5 assigns to the
// "signaled fd-bearing queue": Go's select over a channel stands in for
// waiting on a signaling file descriptor.
type Mailbox struct {
	mu     sync.Mutex
	q      []Command
	signal chan struct{}
	closed bool
}

// NewMailbox returns an empty Mailbox ready to receive commands.
func NewMailbox() *Mailbox {
	return &Mailbox{signal: make(chan struct{}, 1)}
}

// Send enqueues cmd. Safe to call from any goroutine; never blocks.
func (mb *Mailbox) Send(cmd Command) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.q = append(mb.q, cmd)
	mb.mu.Unlock()

	select {
	case mb.signal <- struct{}{}:
	default:
	}
}

// TryRecv dequeues one command without blocking. ok is false if the
// mailbox was empty.
func (mb *Mailbox) TryRecv() (cmd Command, ok bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.q) == 0 {
		return Command{}, false
	}
	cmd = mb.q[0]
	mb.q = mb.q[1:]
	return cmd, true
}

// Drain dequeues up to max commands (0 means unlimited) and returns them,
// implementing the throttle spec.md §4.1 describes for the send/recv
// opportunistic-drain path.
func (mb *Mailbox) Drain(max int) []Command {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.q) == 0 {
		return nil
	}
	n := len(mb.q)
	if max > 0 && n > max {
		n = max
	}
	out := mb.q[:n]
	mb.q = mb.q[n:]
	return out
}

// Wait blocks until a command is enqueued or timeout elapses (timeout <=
// 0 means wait forever). It returns false on timeout. Close does not wake
// a pending Wait.
func (mb *Mailbox) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-mb.signal
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-mb.signal:
		return true
	case <-t.C:
		return false
	}
}

// Empty reports whether the mailbox currently has no queued commands.
func (mb *Mailbox) Empty() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.q) == 0
}

// Close marks the mailbox closed; further Sends are dropped.
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	mb.closed = true
	mb.mu.Unlock()
}
