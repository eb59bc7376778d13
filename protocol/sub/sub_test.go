package sub

import (
	"testing"
	"time"

	zx "github.com/pjkundert/zeromq3-0"
	"github.com/pjkundert/zeromq3-0/protocol/pub"
	"github.com/pjkundert/zeromq3-0/protocol/push"
)

func send(t *testing.T, s zx.Socket, body string) {
	m := zx.NewMessage(len(body))
	m.Body = append(m.Body, []byte(body)...)
	if err := s.Send(m, zx.FlagDontWait); err != nil {
		t.Fatalf("Send(%q): %v", body, err)
	}
}

// TestSubReplaysSubscriptionOnAttach subscribes before connecting, then
// verifies the prior subscription reaches the publisher once attached —
// the pub-side pipe must see it without a second SetOption call.
func TestSubReplaysSubscriptionOnAttach(t *testing.T) {
	ctx := zx.NewContext(0)
	p := pub.NewSocket(ctx)
	if err := p.Bind("inproc://sub-replay"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	s := NewSocket(ctx)
	if err := s.SetOption(zx.OptionSubscribe, []byte("A")); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := s.Connect("inproc://sub-replay"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if n := p.HasSubs([]byte("A")); n != 1 {
		t.Fatalf("HasSubs(A) = %d, want 1 (subscription made before Connect must still replay)", n)
	}
}

// TestSubFiltersLocally connects to a PUSH socket rather than a PUB, so
// every message arrives at the pipe unconditionally — there is no
// upstream mtrie to do the filtering first. This isolates SUB's own
// XRecv-side matchesAny check: only messages matching the subscription
// list should ever come back from Recv, with the rest silently dropped.
func TestSubFiltersLocally(t *testing.T) {
	ctx := zx.NewContext(0)
	p := push.NewSocket(ctx)
	if err := p.Bind("inproc://sub-filter"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	s := NewSocket(ctx)
	if err := s.Connect("inproc://sub-filter"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.SetOption(zx.OptionSubscribe, []byte("A")); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	send(t, p, "A-match")
	send(t, p, "Z-nomatch")
	send(t, p, "A-match-2")

	m, err := s.Recv(zx.FlagDontWait)
	if err != nil {
		t.Fatalf("Recv 1: %v", err)
	}
	if string(m.Body) != "A-match" {
		t.Fatalf("Recv 1: got %q, want A-match", m.Body)
	}

	m, err = s.Recv(zx.FlagDontWait)
	if err != nil {
		t.Fatalf("Recv 2: %v", err)
	}
	if string(m.Body) != "A-match-2" {
		t.Fatalf("Recv 2: got %q, want A-match-2 (Z-nomatch must be dropped silently)", m.Body)
	}

	if _, err := s.Recv(zx.FlagDontWait); err == nil {
		t.Fatalf("Recv 3: expected ErrAgain, got a message")
	}
}
