// Package xpub implements the XPUB protocol: mtrie-backed subscription
// matching on outbound send, with inbound subscribe/unsubscribe control
// messages surfaced to the application through Recv rather than absorbed
// silently (that absorption is what distinguishes protocol/pub from this
// package). Grounded on spec.md §4.3's opcode convention and the
// teacher's protocol/xpub for the AddPipe/RemovePipe/per-pipe-state idiom.
package xpub

import (
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
	"github.com/pjkundert/zeromq3-0/mtrie"
)

const (
	opUnsubscribe = 0x00
	opSubscribe   = 0x01
)

type pipeHandle struct{ zx.Pipe }

type socket struct {
	mu    sync.Mutex
	trie  *mtrie.Mtrie
	pipes map[zx.PipeID]zx.Pipe

	pending []*zx.Message
}

// NewSocket allocates a new Socket using the XPUB protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{
		trie:  mtrie.New(),
		pipes: make(map[zx.PipeID]zx.Pipe),
	})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.XPub, Peer: zx.XSub, SelfName: "xpub", PeerName: "xsub"}
}

func (s *socket) XAttachPipe(p zx.Pipe, _ []byte) error {
	s.mu.Lock()
	s.pipes[p.ID()] = p
	s.mu.Unlock()
	return nil
}

func (s *socket) RemovePipe(p zx.Pipe) {
	s.mu.Lock()
	delete(s.pipes, p.ID())
	s.mu.Unlock()
	s.trie.RmPipe(pipeHandle{p}, nil)
}

// ReadActivated drains every control message the pipe has ready, updating
// the subscription trie and queuing a copy for the application to observe
// via Recv. The queue has no bound: it grows until the application Recvs
// the queued messages.
func (s *socket) ReadActivated(p zx.Pipe) {
	for {
		m, ok := p.TryRecv()
		if !ok {
			return
		}
		s.absorb(p, m)
	}
}

func (s *socket) absorb(p zx.Pipe, m *zx.Message) {
	if len(m.Body) == 0 {
		return
	}
	op, prefix := m.Body[0], m.Body[1:]
	s.mu.Lock()
	switch op {
	case opSubscribe:
		s.trie.Add(append([]byte(nil), prefix...), pipeHandle{p})
	case opUnsubscribe:
		s.trie.Rm(append([]byte(nil), prefix...), pipeHandle{p})
	default:
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, m)
	s.mu.Unlock()
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	var targets []zx.Pipe
	s.trie.Match(m.Body, func(p mtrie.Pipe) {
		if ph, ok := p.(pipeHandle); ok {
			targets = append(targets, ph.Pipe)
		}
	}, 0)
	s.mu.Unlock()

	for _, p := range targets {
		_ = p.Send(m.Dup())
	}
	return nil
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, zerr.ErrAgain
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	return m, nil
}

func (s *socket) XHasIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

func (s *socket) XHasOut() bool { return true }

func (s *socket) XHasSubs(prefix []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trie.Has(prefix)
}

func (s *socket) XSetOption(string, interface{}) error { return zerr.ErrBadProperty }
func (s *socket) XGetOption(string) (interface{}, error) {
	return nil, zerr.ErrBadProperty
}
