// Package xrep implements the XREP (ROUTER) protocol: pipes are indexed
// by identity for addressable routing. XSend treats the whole message
// header as the destination identity and routes to the matching pipe;
// XRecv replaces the header of whatever it returns with the originating
// pipe's identity, so a header the sender set is not kept. Grounded on
// the teacher's legacy xrep.go identity
// map, generalized from mangos's raw-mode header convention to this
// core's Message.Header field.
package xrep

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu       sync.Mutex
	byID     map[string]zx.Pipe
	identity map[zx.PipeID][]byte
	pipes    []zx.Pipe
	recvNext int
}

// NewSocket allocates a new Socket using the XREP (ROUTER) protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{
		byID:     make(map[string]zx.Pipe),
		identity: make(map[zx.PipeID][]byte),
	})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.XRep, Peer: zx.XReq, SelfName: "xrep", PeerName: "xreq"}
}

// XAttachPipe rejects a newly attaching pipe whose identity collides with
// one already indexed, per spec.md §4.3's "typically rejecting the newer
// connection" resolution policy.
func (s *socket) XAttachPipe(p zx.Pipe, identity []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(identity)
	if _, exists := s.byID[key]; exists {
		return zerr.ErrProtoState
	}
	s.byID[key] = p
	s.identity[p.ID()] = identity
	s.pipes = append(s.pipes, p)
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.identity[p.ID()]; ok {
		delete(s.byID, string(id))
		delete(s.identity, p.ID())
	}
	for i, pp := range s.pipes {
		if pp == p {
			s.pipes = append(s.pipes[:i], s.pipes[i+1:]...)
			if s.recvNext > i {
				s.recvNext--
			}
			break
		}
	}
}

// XSend routes by m.Header, which must equal the destination identity
// exactly, and sends a copy with an empty header. An unknown identity is
// dropped silently — it never existed or has since disconnected, and
// there is no backtrace to report the failure to.
func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	p, ok := s.byID[string(m.Header)]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	out := m.Clone()
	out.Header = nil
	return p.Send(out)
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
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
			id := append([]byte(nil), s.identity[p.ID()]...)
			s.mu.Unlock()
			m.Header = id
			return m, nil
		}
	}
	s.mu.Unlock()
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
