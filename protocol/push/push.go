// Package push implements the PUSH protocol: round-robin fan-out to
// whichever attached pipe can currently accept a message, no Recv.
// Grounded on the teacher's protocol/xreq round-robin idiom, since
// mangos's own push.go is the PULL side's mirror and push uses the same
// load-balancing loop as dealer's XSend.
package push

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu    sync.Mutex
	pipes []zx.Pipe
	next  int
}

// NewSocket allocates a new Socket using the PUSH protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Push, Peer: zx.Pull, SelfName: "push", PeerName: "pull"}
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
			if s.next > i {
				s.next--
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
		idx := (s.next + i) % n
		if s.pipes[idx].CanSend() {
			err := s.pipes[idx].Send(m)
			s.next = (idx + 1) % n
			return err
		}
	}
	return zerr.ErrAgain
}

func (s *socket) XRecv() (*zx.Message, error) { return nil, zerr.ErrNotSupported }

func (s *socket) XHasIn() bool { return false }

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
