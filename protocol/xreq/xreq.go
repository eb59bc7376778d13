// Package xreq implements the XREQ (DEALER) protocol: round-robin Send
// across attached pipes and fair-queued Recv, with no request/reply
// bookkeeping of its own — that belongs to protocol/req, which keeps its
// own pipe list and repeats the same round-robin send selection rather
// than building on this package. Grounded on the teacher's protocol/xreq round-robin
// sender combined with protocol/xrep's (ROUTER mirror) fair-queue
// receiver idiom.
package xreq

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu       sync.Mutex
	pipes    []zx.Pipe
	sendNext int
	recvNext int
}

// NewSocket allocates a new Socket using the XREQ (DEALER) protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.XReq, Peer: zx.XRep, SelfName: "xreq", PeerName: "xrep"}
}

func (s *socket) XAttachPipe(p zx.Pipe, _ []byte) error {
	s.mu.Lock()
	s.pipes = append(s.pipes, p)
	s.mu.Unlock()
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, pp := range s.pipes {
		if pp == p {
			s.pipes = append(s.pipes[:i], s.pipes[i+1:]...)
			if s.sendNext > i {
				s.sendNext--
			}
			if s.recvNext > i {
				s.recvNext--
			}
			break
		}
	}
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pipes)
	if n == 0 {
		return zerr.ErrAgain
	}
	for i := 0; i < n; i++ {
		idx := (s.sendNext + i) % n
		if s.pipes[idx].CanSend() {
			err := s.pipes[idx].Send(m)
			s.sendNext = (idx + 1) % n
			return err
		}
	}
	return zerr.ErrAgain
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pipes)
	if n == 0 {
		return nil, zerr.ErrAgain
	}
	for i := 0; i < n; i++ {
		idx := (s.recvNext + i) % n
		if m, ok := s.pipes[idx].TryRecv(); ok {
			s.recvNext = (idx + 1) % n
			return m, nil
		}
	}
	return nil, zerr.ErrAgain
}

func (s *socket) XHasIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pipes {
		if p.CanRecv() {
			return true
		}
	}
	return false
}

func (s *socket) XHasOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pipes {
		if p.CanSend() {
			return true
		}
	}
	return false
}

func (s *socket) XHasSubs([]byte) int { return -1 }

func (s *socket) XSetOption(string, interface{}) error { return zerr.ErrBadProperty }
func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
