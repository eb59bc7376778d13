package xrep

import (
	"testing"

	zx "github.com/pjkundert/zeromq3-0"
	"github.com/pjkundert/zeromq3-0/protocol/xreq"
)

func TestRouterAddressesByIdentity(t *testing.T) {
	ctx := zx.NewContext(0)
	router := NewSocket(ctx)
	if err := router.Bind("inproc://xrep-route"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	d1 := xreq.NewSocket(ctx)
	d2 := xreq.NewSocket(ctx)
	if err := d1.Connect("inproc://xrep-route"); err != nil {
		t.Fatalf("Connect d1: %v", err)
	}
	if err := d2.Connect("inproc://xrep-route"); err != nil {
		t.Fatalf("Connect d2: %v", err)
	}

	out := zx.NewMessage(2)
	out.Body = append(out.Body, []byte("hi")...)
	if err := d2.Send(out, zx.FlagDontWait); err != nil {
		t.Fatalf("d2 Send: %v", err)
	}

	in, err := router.Recv(zx.FlagDontWait)
	if err != nil {
		t.Fatalf("router Recv: %v", err)
	}
	if len(in.Header) == 0 {
		t.Fatal("router Recv did not set the originating identity as the header")
	}
	if string(in.Body) != "hi" {
		t.Fatalf("router got %q, want hi", in.Body)
	}

	reply := zx.NewMessage(2)
	reply.Body = append(reply.Body, []byte("ok")...)
	reply.Header = in.Header
	if err := router.Send(reply, zx.FlagDontWait); err != nil {
		t.Fatalf("router Send: %v", err)
	}

	back, err := d2.Recv(zx.FlagDontWait)
	if err != nil {
		t.Fatalf("d2 Recv: %v", err)
	}
	if string(back.Body) != "ok" {
		t.Fatalf("d2 got %q, want ok", back.Body)
	}

	if _, err := d1.Recv(zx.FlagDontWait); err == nil {
		t.Fatal("d1 should not have received the reply addressed to d2")
	}
}

// TestRouterSeesUserSuppliedIdentity exercises spec.md §4.3's
// peer-provided identity path: a DEALER that sets OptionIdentity before
// connecting must be addressable by that exact identity at the ROUTER,
// not by an auto-generated one.
func TestRouterSeesUserSuppliedIdentity(t *testing.T) {
	ctx := zx.NewContext(0)
	router := NewSocket(ctx)
	if err := router.Bind("inproc://xrep-identity"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	dealer := xreq.NewSocket(ctx)
	if err := dealer.SetOption(zx.OptionIdentity, []byte("dealer-1")); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := dealer.Connect("inproc://xrep-identity"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	out := zx.NewMessage(2)
	out.Body = append(out.Body, []byte("hi")...)
	if err := dealer.Send(out, zx.FlagDontWait); err != nil {
		t.Fatalf("dealer Send: %v", err)
	}

	in, err := router.Recv(zx.FlagDontWait)
	if err != nil {
		t.Fatalf("router Recv: %v", err)
	}
	if string(in.Header) != "dealer-1" {
		t.Fatalf("router saw identity %q, want dealer-1", in.Header)
	}
}

// TestRouterDropsUnknownIdentitySilently exercises the case where the
// destination identity no longer maps to any pipe (never existed, or has
// disconnected): Send must drop the message and return nil, not an error.
func TestRouterDropsUnknownIdentitySilently(t *testing.T) {
	ctx := zx.NewContext(0)
	router := NewSocket(ctx)
	if err := router.Bind("inproc://xrep-unknown"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	reply := zx.NewMessage(2)
	reply.Body = append(reply.Body, []byte("ok")...)
	reply.Header = []byte("no-such-peer")
	if err := router.Send(reply, zx.FlagDontWait); err != nil {
		t.Fatalf("Send to unknown identity: got %v, want nil (dropped silently)", err)
	}
}
