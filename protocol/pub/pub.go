// Package pub implements the PUB protocol: like xpub's mtrie-backed
// matching on send, but inbound subscribe/unsubscribe control messages
// are absorbed silently rather than surfaced through Recv, and Recv
// itself is unsupported. Grounded on spec.md §4.3 and the teacher's
// protocol/pub. It does not import protocol/xpub: it carries its own copy
// of xpub's send and control-message handling, and both packages share
// the trie walk through mtrie.Match.
package pub

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
}

// NewSocket allocates a new Socket using the PUB protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{
		trie:  mtrie.New(),
		pipes: make(map[zx.PipeID]zx.Pipe),
	})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Pub, Peer: zx.Sub, SelfName: "pub", PeerName: "sub"}
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

func (s *socket) ReadActivated(p zx.Pipe) {
	for {
		m, ok := p.TryRecv()
		if !ok {
			return
		}
		if len(m.Body) == 0 {
			continue
		}
		op, prefix := m.Body[0], m.Body[1:]
		s.mu.Lock()
		switch op {
		case opSubscribe:
			s.trie.Add(append([]byte(nil), prefix...), pipeHandle{p})
		case opUnsubscribe:
			s.trie.Rm(append([]byte(nil), prefix...), pipeHandle{p})
		}
		s.mu.Unlock()
	}
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

func (s *socket) XRecv() (*zx.Message, error) { return nil, zerr.ErrNotSupported }

func (s *socket) XHasIn() bool  { return false }
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
