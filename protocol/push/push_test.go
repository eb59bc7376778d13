package push

import (
	"testing"

	zx "github.com/pjkundert/zeromq3-0"
	"github.com/pjkundert/zeromq3-0/protocol/pull"
)

func TestPushPullRoundRobin(t *testing.T) {
	ctx := zx.NewContext(0)
	ps := NewSocket(ctx)
	if err := ps.Bind("inproc://push-pull"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	p1 := pull.NewSocket(ctx)
	p2 := pull.NewSocket(ctx)
	if err := p1.Connect("inproc://push-pull"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := p2.Connect("inproc://push-pull"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for i := 0; i < 4; i++ {
		m := zx.NewMessage(1)
		m.Body = append(m.Body, byte('a'+i))
		if err := ps.Send(m, zx.FlagDontWait); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	var got []byte
	for i := 0; i < 2; i++ {
		m, err := p1.Recv(zx.FlagDontWait)
		if err != nil {
			t.Fatalf("p1 Recv %d: %v", i, err)
		}
		got = append(got, m.Body...)
	}
	for i := 0; i < 2; i++ {
		m, err := p2.Recv(zx.FlagDontWait)
		if err != nil {
			t.Fatalf("p2 Recv %d: %v", i, err)
		}
		got = append(got, m.Body...)
	}
	if len(got) != 4 {
		t.Fatalf("received %d bytes total, want 4: %q", len(got), got)
	}
}
