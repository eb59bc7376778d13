// Package xsub implements the XSUB protocol: like sub, it replays a
// subscription list on new pipe attachment, but filter is false — Recv
// returns everything a pipe delivers, and Send lets the application ship
// arbitrary bytes upstream (including raw 0x00/0x01-prefixed control
// frames). The SUBSCRIBE/UNSUBSCRIBE options only edit the list replayed
// on future attachments; unlike protocol/sub, they send nothing to pipes
// already attached. Grounded on spec.md §4.3 and the teacher's legacy
// xsub.go.
package xsub

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

const opSubscribe = 0x01

type socket struct {
	mu    sync.Mutex
	pipes map[zx.PipeID]zx.Pipe
	subs  [][]byte
}

// NewSocket allocates a new Socket using the XSUB protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{pipes: make(map[zx.PipeID]zx.Pipe)})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.XSub, Peer: zx.XPub, SelfName: "xsub", PeerName: "xpub"}
}

func (s *socket) XAttachPipe(p zx.Pipe, _ []byte) error {
	s.mu.Lock()
	s.pipes[p.ID()] = p
	subs := make([][]byte, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, prefix := range subs {
		m := zx.NewMessage(len(prefix) + 1)
		m.Body = append(m.Body, opSubscribe)
		m.Body = append(m.Body, prefix...)
		_ = p.Send(m)
	}
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	delete(s.pipes, p.ID())
	s.mu.Unlock()
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	pipes := make([]zx.Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.mu.Unlock()

	if len(pipes) == 0 {
		return zerr.ErrAgain
	}
	var lastErr error
	for i, p := range pipes {
		msg := m
		if i > 0 {
			msg = m.Dup()
		}
		if err := p.Send(msg); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	pipes := make([]zx.Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.mu.Unlock()

	for _, p := range pipes {
		if m, ok := p.TryRecv(); ok {
			return m, nil
		}
	}
	return nil, zerr.ErrAgain
}

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

func (s *socket) XHasOut() bool {
	s.mu.Lock()
	pipes := make([]zx.Pipe, 0, len(s.pipes))
	for _, p := range s.pipes {
		pipes = append(pipes, p)
	}
	s.mu.Unlock()
	for _, p := range pipes {
		if p.CanSend() {
			return true
		}
	}
	return false
}

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
		s.mu.Unlock()
		return nil
	case zx.OptionUnsubscribe:
		prefix, ok := v.([]byte)
		if !ok {
			return zerr.ErrInvalid
		}
		s.mu.Lock()
		for i, sub := range s.subs {
			if string(sub) == string(prefix) {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		return nil
	}
	return zerr.ErrBadProperty
}

func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
