// Package rep implements the REP protocol: fair-queued Recv across every
// attached pipe, remembering which pipe (and request id) the most recent
// Recv came from so the next Send routes back to exactly that peer.
// Send before a matching Recv, or a second Send for the same Recv, fails
// with a protocol-state error. Grounded on the teacher's protocol/rep/
// rep.go reply-routing idiom.
package rep

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu       sync.Mutex
	pipes    []zx.Pipe
	recvNext int

	replyTo   zx.Pipe
	reqHeader []byte
	awaiting  bool
}

// NewSocket allocates a new Socket using the REP protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Rep, Peer: zx.Req, SelfName: "rep", PeerName: "req"}
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
			if s.recvNext > i {
				s.recvNext--
			}
			break
		}
	}
	if s.replyTo == p {
		s.replyTo = nil
		s.awaiting = false
	}
}

// Hiccuped abandons a pending reply route riding the hiccuped pipe: the
// request it was answering can no longer be delivered meaningfully.
func (s *socket) Hiccuped(p zx.Pipe) {
	s.mu.Lock()
	if s.replyTo == p {
		s.replyTo = nil
		s.awaiting = false
	}
	s.mu.Unlock()
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return nil, zerr.ErrProtoState
	}
	n := len(s.pipes)
	if n == 0 {
		s.mu.Unlock()
		return nil, zerr.ErrAgain
	}
	for i := 0; i < n; i++ {
		idx := (s.recvNext + i) % n
		p := s.pipes[idx]
		if m, ok := p.TryRecv(); ok {
			s.recvNext = (idx + 1) % n
			s.replyTo = p
			s.reqHeader = append([]byte(nil), m.Header...)
			s.awaiting = true
			s.mu.Unlock()
			m.Header = nil
			return m, nil
		}
	}
	s.mu.Unlock()
	return nil, zerr.ErrAgain
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	if !s.awaiting {
		s.mu.Unlock()
		return zerr.ErrProtoState
	}
	p := s.replyTo
	m.Header = append([]byte(nil), s.reqHeader...)
	s.awaiting = false
	s.replyTo = nil
	s.reqHeader = nil
	s.mu.Unlock()

	if p == nil {
		return zerr.ErrAgain
	}
	return p.Send(m)
}

func (s *socket) XHasIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return false
	}
	for _, p := range s.pipes {
		if p.CanRecv() {
			return true
		}
	}
	return false
}

func (s *socket) XHasOut() bool {
	s.mu.Lock()
	awaiting, p := s.awaiting, s.replyTo
	s.mu.Unlock()
	return awaiting && p != nil && p.CanSend()
}

func (s *socket) XHasSubs([]byte) int { return -1 }

func (s *socket) XSetOption(string, interface{}) error { return zerr.ErrBadProperty }
func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
