// Package sub implements the SUB protocol: a subscription list replayed
// upstream on every new pipe attachment, with inbound filtering against
// that same list. Grounded on spec.md §4.3's SUB/XSUB description and
// the teacher's legacy xsub.go subscription-list idiom, generalized to
// this core's Pipe/Message types.
package sub

import (
	"bytes"
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

const (
	opUnsubscribe = 0x00
	opSubscribe   = 0x01
)

type socket struct {
	mu    sync.Mutex
	pipes map[zx.PipeID]zx.Pipe
	subs  [][]byte
}

// NewSocket allocates a new Socket using the SUB protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{pipes: make(map[zx.PipeID]zx.Pipe)})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Sub, Peer: zx.Pub, SelfName: "sub", PeerName: "pub"}
}

func (s *socket) XAttachPipe(p zx.Pipe, _ []byte) error {
	s.mu.Lock()
	s.pipes[p.ID()] = p
	subs := make([][]byte, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, prefix := range subs {
		_ = p.Send(controlMsg(opSubscribe, prefix))
	}
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	delete(s.pipes, p.ID())
	s.mu.Unlock()
}

func controlMsg(op byte, prefix []byte) *zx.Message {
	m := zx.NewMessage(len(prefix) + 1)
	m.Body = append(m.Body, op)
	m.Body = append(m.Body, prefix...)
	return m
}

func (s *socket) XSend(*zx.Message) error { return zerr.ErrNotSupported }

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	pipes := make([]zx.Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	subs := s.subs
	s.mu.Unlock()

	for _, p := range pipes {
		for {
			m, ok := p.TryRecv()
			if !ok {
				break
			}
			if matchesAny(subs, m.Body) {
				return m, nil
			}
		}
	}
	return nil, zerr.ErrAgain
}

func matchesAny(subs [][]byte, body []byte) bool {
	if len(subs) == 0 {
		return false
	}
	for _, sub := range subs {
		if bytes.HasPrefix(body, sub) {
			return true
		}
	}
	return false
}

// XHasIn is a conservative "maybe": CanRecv peeks queue occupancy, not
// filter match, so a pipe holding only messages this socket will end up
// dropping still reports true. EVENTS never blocks to compute, so an
// exact filtered answer isn't available without consuming the queue.
func (s *socket) XHasIn() bool {
	s.mu.Lock()
	pipes := make([]zx.Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.mu.Unlock()

	for _, p := range pipes {
		if p.CanRecv() {
			return true
		}
	}
	return false
}

func (s *socket) XHasOut() bool { return false }

func (s *socket) XHasSubs([]byte) int { return -1 }

func (s *socket) XSetOption(name string, v interface{}) error {
	switch name {
	case zx.OptionSubscribe:
		prefix, ok := v.([]byte)
		if !ok {
			return zerr.ErrInvalid
		}
		s.mu.Lock()
		s.subs = append(s.subs, append([]byte(nil), prefix...))
		pipes := make([]zx.Pipe, 0, len(s.pipes))
		for _, p := range s.pipes {
			pipes = append(pipes, p)
		}
		s.mu.Unlock()
		for _, p := range pipes {
			_ = p.Send(controlMsg(opSubscribe, prefix))
		}
		return nil
	case zx.OptionUnsubscribe:
		prefix, ok := v.([]byte)
		if !ok {
			return zerr.ErrInvalid
		}
		s.mu.Lock()
		for i, sub := range s.subs {
			if bytes.Equal(sub, prefix) {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		pipes := make([]zx.Pipe, 0, len(s.pipes))
		for _, p := range s.pipes {
			pipes = append(pipes, p)
		}
		s.mu.Unlock()
		for _, p := range pipes {
			_ = p.Send(controlMsg(opUnsubscribe, prefix))
		}
		return nil
	}
	return zerr.ErrBadProperty
}

func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
