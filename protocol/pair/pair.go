// Package pair implements the PAIR protocol: a strict 1:1 peering
// pattern. Grounded on the teacher's protocol/pair (Init/AddEndpoint
// single-peer rejection), rewritten against this core's Pipe/Message
// types.
package pair

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu   sync.Mutex
	peer zx.Pipe
}

// NewSocket allocates a new Socket using the PAIR protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Pair, Peer: zx.Pair, SelfName: "pair", PeerName: "pair"}
}

func (s *socket) XAttachPipe(p zx.Pipe, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer != nil {
		// A PAIR socket accepts exactly one peer; a second connection
		// attempt is rejected the way the teacher's AddEndpoint closes
		// the newcomer rather than replacing the incumbent.
		return zerr.ErrNotCompat
	}
	s.peer = p
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == p {
		s.peer = nil
	}
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	if p == nil {
		return zerr.ErrAgain
	}
	return p.Send(m)
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	if p == nil {
		return nil, zerr.ErrAgain
	}
	m, ok := p.TryRecv()
	if !ok {
		return nil, zerr.ErrAgain
	}
	return m, nil
}

func (s *socket) XHasIn() bool {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	return p != nil && p.CanRecv()
}

func (s *socket) XHasOut() bool {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	return p != nil && p.CanSend()
}

func (s *socket) XHasSubs(_ []byte) int { return -1 }

func (s *socket) XSetOption(string, interface{}) error { return zerr.ErrBadProperty }
func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
