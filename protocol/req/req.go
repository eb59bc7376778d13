// Package req implements the REQ protocol: a strict request/reply
// lockstep over its own copy of xreq's round-robin pipe selection. Exactly one
// request may be outstanding at a time; Recv is only valid after a Send,
// and only accepts a reply carrying the matching request id. A hiccup on
// the pipe holding the outstanding request resets the state machine so
// the caller can retry, per spec.md §4.4's resynchronization note.
// Grounded on the teacher's protocol/req/ctx.go request-id stamping.
package req

import (
	"encoding/binary"
	"sync"

	zx "github.com/pjkundert/zeromq3-0"
	zerr "github.com/pjkundert/zeromq3-0/errors"
)

type socket struct {
	mu       sync.Mutex
	pipes    []zx.Pipe
	sendNext int

	reqID    uint32
	outPipe  zx.Pipe
	awaiting bool
}

// NewSocket allocates a new Socket using the REQ protocol.
func NewSocket(ctx *zx.Context) zx.Socket {
	return zx.NewSocket(ctx, &socket{})
}

func (s *socket) Info() zx.ProtocolInfo {
	return zx.ProtocolInfo{Self: zx.Req, Peer: zx.Rep, SelfName: "req", PeerName: "rep"}
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
			break
		}
	}
	if s.outPipe == p {
		s.outPipe = nil
		s.awaiting = false
	}
}

// Hiccuped clears an outstanding request riding the hiccuped pipe, since
// the reply it was waiting for was discarded along with the transport's
// in-flight state.
func (s *socket) Hiccuped(p zx.Pipe) {
	s.mu.Lock()
	if s.outPipe == p {
		s.outPipe = nil
		s.awaiting = false
	}
	s.mu.Unlock()
}

func (s *socket) XSend(m *zx.Message) error {
	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return zerr.ErrProtoState
	}
	n := len(s.pipes)
	if n == 0 {
		s.mu.Unlock()
		return zerr.ErrAgain
	}
	var chosen zx.Pipe
	var idx int
	for i := 0; i < n; i++ {
		idx = (s.sendNext + i) % n
		if s.pipes[idx].CanSend() {
			chosen = s.pipes[idx]
			break
		}
	}
	if chosen == nil {
		s.mu.Unlock()
		return zerr.ErrAgain
	}
	s.reqID++
	id := s.reqID
	m.Header = appendUint32(m.Header[:0], id)
	if err := chosen.Send(m); err != nil {
		s.mu.Unlock()
		return err
	}
	s.sendNext = (idx + 1) % n
	s.outPipe = chosen
	s.awaiting = true
	s.mu.Unlock()
	return nil
}

func (s *socket) XRecv() (*zx.Message, error) {
	s.mu.Lock()
	if !s.awaiting {
		s.mu.Unlock()
		return nil, zerr.ErrProtoState
	}
	p := s.outPipe
	id := s.reqID
	s.mu.Unlock()

	if p == nil {
		return nil, zerr.ErrAgain
	}
	for {
		m, ok := p.TryRecv()
		if !ok {
			return nil, zerr.ErrAgain
		}
		got, rest, valid := readUint32(m.Header)
		if !valid || got != id {
			continue // stale reply from a superseded request; drop it
		}
		m.Header = rest
		s.mu.Lock()
		s.awaiting = false
		s.outPipe = nil
		s.mu.Unlock()
		return m, nil
	}
}

func (s *socket) XHasIn() bool {
	s.mu.Lock()
	awaiting, p := s.awaiting, s.outPipe
	s.mu.Unlock()
	return awaiting && p != nil && p.CanRecv()
}

func (s *socket) XHasOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return false
	}
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

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func readUint32(b []byte) (v uint32, rest []byte, ok bool) {
	if len(b) < 4 {
		return 0, b, false
	}
	return binary.BigEndian.Uint32(b), b[4:], true
}
