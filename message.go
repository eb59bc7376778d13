package zx

import (
	"encoding/binary"
	"sync/atomic"
)

// Message is the unit exchanged between sockets and pipes. Header and Body
// are split apart the way protocol implementations need them: Header
// carries administrative frames a protocol prepends (request ids,
// identities, pub/sub control opcodes); Body is the user payload.
//
// Messages are reference counted so that PUB/XPUB can hand the same body
// to many pipes without copying it per-pipe: Dup bumps the count, Free
// decrements it. The count is bookkeeping only; nothing is released when
// it reaches zero, and the backing storage is left to the garbage
// collector.
type Message struct {
	Header []byte
	Body   []byte

	// More indicates this is not the final frame of a multi-part
	// message. Label marks a frame as administrative rather than user
	// payload. Both are stripped from the delivered message and
	// surfaced through RCVMORE/RCVLABEL getsockopt.
	More  bool
	Label bool

	// Pipe identifies which pipe a received message arrived on. Nil for
	// messages constructed by the application.
	Pipe Pipe

	refs *int32
}

// NewMessage allocates a Message with Body pre-sized to cap bytes of
// spare capacity.
func NewMessage(cap int) *Message {
	one := int32(1)
	return &Message{Body: make([]byte, 0, cap), refs: &one}
}

// Dup returns a reference-sharing duplicate of Header/Body: mutating one
// duplicate's slices in place (not via append beyond capacity) is visible
// to all duplicates, matching the teacher's "shallow copy with refcount"
// mtrie note but applied to messages instead of trie nodes.
func (m *Message) Dup() *Message {
	if m.refs != nil {
		atomic.AddInt32(m.refs, 1)
	}
	return &Message{
		Header: m.Header,
		Body:   m.Body,
		More:   m.More,
		Label:  m.Label,
		Pipe:   m.Pipe,
		refs:   m.refs,
	}
}

// Free releases this handle's reference. It is safe to call multiple
// times on independent Dup results; it is a bug to call it twice on the
// same handle.
func (m *Message) Free() {
	if m.refs == nil {
		return
	}
	atomic.AddInt32(m.refs, -1)
}

// Clone makes an independent deep copy, used when a message must be
// mutated (e.g. stripping a control-message opcode byte) without
// disturbing other holders of the same Dup chain.
func (m *Message) Clone() *Message {
	c := NewMessage(len(m.Body))
	c.Header = append([]byte(nil), m.Header...)
	c.Body = append(c.Body, m.Body...)
	c.More = m.More
	c.Label = m.Label
	return c
}

// putUint32 appends a 32-bit big-endian value to the header.
func (m *Message) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	m.Header = append(m.Header, b[:]...)
}

// getUint32 consumes a 32-bit big-endian value from the front of the
// header.
func (m *Message) getUint32() (uint32, bool) {
	if len(m.Header) < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(m.Header)
	m.Header = m.Header[4:]
	return v, true
}
