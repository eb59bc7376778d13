// Package pull implements the PULL protocol: fair-queued Recv across
// every attached pipe, no Send. Grounded on the teacher's protocol/pull
// fair-queuing idiom.
package pull

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

// NewSocket allocates a new Socket using the PULL protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Pull, Peer: zx.Push, SelfName: "pull", PeerName: "push"}
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

func (s *socket) XSend(*zx.Message) error { return zerr.ErrNotSupported }

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pipes)
	if n == 0 {
		return nil, zerr.ErrAgain
	}
	for i := 0; i < n; i++ {
		idx := (s.next + i) % n
		if m, ok := s.pipes[idx].TryRecv(); ok {
			s.next = (idx + 1) % n
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

func (s *socket) XHasOut() bool { return false }

func (s *socket) XHasSubs([]byte) int { return -1 }

func (s *socket) XSetOption(string, interface{}) error { return zerr.ErrBadProperty }
func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
