package mtrie

import (
	"fmt"
	"testing"

	zx "github.com/pjkundert/zeromq3-0"
)

type fakePipe zx.PipeID

func (f fakePipe) ID() zx.PipeID { return zx.PipeID(f) }

func TestAddIsFirst(t *testing.T) {
	tr := New()
	if !tr.Add([]byte("BO"), fakePipe(1)) {
		t.Fatal("first add at a prefix must report added_first=true")
	}
	if tr.Add([]byte("BO"), fakePipe(2)) {
		t.Fatal("second add at the same prefix must report added_first=false")
	}
}

func TestRmBecomesEmpty(t *testing.T) {
	tr := New()
	tr.Add([]byte("BO"), fakePipe(1))
	tr.Add([]byte("BO"), fakePipe(2))

	if tr.Rm([]byte("BO"), fakePipe(1)) {
		t.Fatal("rm with a remaining pipe must report became_empty=false")
	}
	if !tr.Rm([]byte("BO"), fakePipe(2)) {
		t.Fatal("rm of the last pipe must report became_empty=true")
	}
	if tr.Rm([]byte("BO"), fakePipe(2)) {
		t.Fatal("rm of an absent pipe must report false, not panic")
	}
}

func TestRoundTrip(t *testing.T) {
	tr := New()
	prefixes := [][]byte{[]byte(""), []byte("B"), []byte("BO"), []byte("BOO"), []byte("BOOP")}
	for i, p := range prefixes {
		tr.Add(p, fakePipe(i+1))
	}
	for i, p := range prefixes {
		tr.Rm(p, fakePipe(i+1))
	}
	for _, p := range prefixes {
		if n := tr.Has(p); n != 0 {
			t.Fatalf("Has(%q) = %d after full round trip, want 0", p, n)
		}
	}
}

func TestMatchCompletenessAndRootWildcard(t *testing.T) {
	tr := New()
	all := fakePipe(1)   // subscribes to everything via empty prefix
	bOnly := fakePipe(2) // "B"
	booOnly := fakePipe(3)

	tr.Add([]byte(""), all)
	tr.Add([]byte("B"), bOnly)
	tr.Add([]byte("BOO"), booOnly)

	var got []zx.PipeID
	n := tr.Match([]byte("BOOP"), func(p Pipe) { got = append(got, p.ID()) }, 0)
	if n != 3 {
		t.Fatalf("Match invocation count = %d, want 3", n)
	}
	want := map[zx.PipeID]bool{1: true, 2: true, 3: true}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected match %d", id)
		}
		delete(want, id)
	}
	if len(want) != 0 {
		t.Fatalf("missing matches: %v", want)
	}

	// A message that doesn't extend past "B" never reaches the "BOO"
	// subscriber.
	got = nil
	n = tr.Match([]byte("BA"), func(p Pipe) { got = append(got, p.ID()) }, 0)
	if n != 2 {
		t.Fatalf("Match(%q) count = %d, want 2", "BA", n)
	}
}

func TestHasExactPrefixOnly(t *testing.T) {
	tr := New()
	tr.Add([]byte("BOO"), fakePipe(1))

	if got := tr.Has([]byte("BO")); got != 0 {
		t.Fatalf("Has(%q) = %d, want 0 (no exact subscriber, only a descendant)", "BO", got)
	}
	if got := tr.Has([]byte("BOO")); got != 1 {
		t.Fatalf("Has(%q) = %d, want 1", "BOO", got)
	}
}

func TestWidensToFullTable(t *testing.T) {
	tr := New()
	for b := 0; b < 256; b++ {
		tr.Add([]byte{byte(b)}, fakePipe(b+1))
	}
	for b := 0; b < 256; b++ {
		var count int
		got := tr.Match([]byte{byte(b)}, func(p Pipe) { count++ }, 0)
		if got != 1 || count != 1 {
			t.Fatalf("byte %d: Match invocation count = %d, want 1", b, got)
		}
	}
}

func TestRmPipeSweepInvokesOnEmpty(t *testing.T) {
	tr := New()
	p := fakePipe(1)
	prefixes := [][]byte{[]byte("A"), []byte("AB"), []byte("B")}
	for _, pre := range prefixes {
		tr.Add(pre, p)
	}
	tr.Add([]byte("B"), fakePipe(2)) // keep "B" non-empty after p is swept

	emptied := map[string]bool{}
	tr.RmPipe(p, func(prefix []byte) {
		// prefix is reused across calls; copy before retaining.
		emptied[fmt.Sprintf("%s", append([]byte(nil), prefix...))] = true
	})

	if !emptied["A"] || !emptied["AB"] {
		t.Fatalf("expected A and AB to empty out, got %v", emptied)
	}
	if emptied["B"] {
		t.Fatalf("B still has fakePipe(2) subscribed, should not have emptied")
	}
	if tr.Has([]byte("B")) != 1 {
		t.Fatalf("Has(B) = %d, want 1 (fakePipe(2) survives the sweep)", tr.Has([]byte("B")))
	}
}
